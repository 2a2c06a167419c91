package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-reservas-api/internal/domain"
)

const statusIndex = "status-starts_at-index"

// ReservationRepo provides typed DynamoDB operations for the reservations table.
type ReservationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewReservationRepo(client *dynamodb.Client, tableName string) *ReservationRepo {
	return &ReservationRepo{client: client, tableName: tableName}
}

func (r *ReservationRepo) Put(ctx context.Context, res *domain.Reservation) error {
	res.Status = domain.NormalizeStatus(string(res.Status))
	item, err := attributevalue.MarshalMap(res)
	if err != nil {
		return fmt.Errorf("marshal reservation: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ReservationRepo) Get(ctx context.Context, reservationID string) (*domain.Reservation, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("reservation_id", reservationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("reservation not found: %w", domain.ErrNotFound)
	}
	var res domain.Reservation
	if err := attributevalue.UnmarshalMap(out.Item, &res); err != nil {
		return nil, err
	}
	res.Status = domain.NormalizeStatus(string(res.Status))
	return &res, nil
}

func (r *ReservationRepo) Update(ctx context.Context, reservationID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("reservation_id", reservationID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// QueryByStatus returns every reservation with the given status. Hash-only
// query on the status GSI — no date range, so no compound condition is
// required (the reconciler filters by time in memory).
func (r *ReservationRepo) QueryByStatus(ctx context.Context, status domain.Status) ([]domain.Reservation, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(statusIndex),
		KeyConditionExpression: aws.String("#s = :status"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
		},
	})
	if err != nil {
		return nil, err
	}
	return unmarshalReservations(out.Items)
}

// QueryByStatusAndRange returns reservations with the given status whose
// start instant falls within [from, to].
func (r *ReservationRepo) QueryByStatusAndRange(ctx context.Context, status domain.Status, from, to time.Time) ([]domain.Reservation, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(statusIndex),
		KeyConditionExpression: aws.String("#s = :status AND starts_at BETWEEN :from AND :to"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
			":from":   &types.AttributeValueMemberS{Value: from.UTC().Format(time.RFC3339Nano)},
			":to":     &types.AttributeValueMemberS{Value: to.UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return nil, err
	}
	return unmarshalReservations(out.Items)
}

// MarkReminderSent flips the reminder idempotency flag. The condition
// expression makes the false->true transition at-most-once even under
// concurrent sweeps; a lost race surfaces as domain.ErrConflict so callers
// can treat the reminder as already sent.
func (r *ReservationRepo) MarkReminderSent(ctx context.Context, reservationID string, at time.Time) error {
	return r.markFlag(ctx, reservationID, "reminder_sent", "reminder_sent_at", at)
}

// MarkImminentSent flips the imminent-notification idempotency flag.
func (r *ReservationRepo) MarkImminentSent(ctx context.Context, reservationID string, at time.Time) error {
	return r.markFlag(ctx, reservationID, "imminent_sent", "imminent_sent_at", at)
}

func (r *ReservationRepo) markFlag(ctx context.Context, reservationID, flagAttr, atAttr string, at time.Time) error {
	ts := at.UTC().Format(time.RFC3339)
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("reservation_id", reservationID),
		UpdateExpression:    aws.String("SET #flag = :true, #at = :at, #ua = :at"),
		ConditionExpression: aws.String("attribute_not_exists(#flag) OR #flag = :false"),
		ExpressionAttributeNames: map[string]string{
			"#flag": flagAttr,
			"#at":   atAttr,
			"#ua":   "updated_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":  &types.AttributeValueMemberBOOL{Value: true},
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":at":    &types.AttributeValueMemberS{Value: ts},
		},
	})
	if err != nil {
		var ccfe *types.ConditionalCheckFailedException
		if errors.As(err, &ccfe) {
			return fmt.Errorf("%s already set for %s: %w", flagAttr, reservationID, domain.ErrConflict)
		}
		return err
	}
	return nil
}

func unmarshalReservations(items []map[string]types.AttributeValue) ([]domain.Reservation, error) {
	var reservations []domain.Reservation
	if err := attributevalue.UnmarshalListOfMaps(items, &reservations); err != nil {
		return nil, err
	}
	for i := range reservations {
		reservations[i].Status = domain.NormalizeStatus(string(reservations[i].Status))
	}
	return reservations, nil
}
