package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-reservas-api/internal/domain"
)

// ComplexRepo provides typed DynamoDB operations for the complexes table.
type ComplexRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewComplexRepo(client *dynamodb.Client, tableName string) *ComplexRepo {
	return &ComplexRepo{client: client, tableName: tableName}
}

func (r *ComplexRepo) Put(ctx context.Context, c *domain.Complex) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal complex: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ComplexRepo) Get(ctx context.Context, complexID string) (*domain.Complex, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("complex_id", complexID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("complex not found: %w", domain.ErrNotFound)
	}
	var c domain.Complex
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
