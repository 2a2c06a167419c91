package expo

import (
	"regexp"

	sdk "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
)

// BatchLimit is the maximum number of messages the Expo push API accepts per
// call.
const BatchLimit = 100

// tokenPattern is the gateway's token grammar. Only the
// "ExponentPushToken[...]" spelling is accepted: the push API rejects the
// legacy "ExpoPushToken" prefix, so letting it through would only burn
// retries downstream.
var tokenPattern = regexp.MustCompile(`^ExponentPushToken\[[A-Za-z0-9_\-]+\]$`)

// IsPushToken reports whether token matches the gateway token grammar.
// Purely syntactic — no network call.
func IsPushToken(token string) bool {
	return tokenPattern.MatchString(token)
}

// Message is a single push message addressed to one device token.
type Message struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Ticket is the per-message outcome reported by the gateway.
type Ticket struct {
	OK bool
	// Reason carries the provider's error message when OK is false.
	Reason string
	// DeviceNotRegistered marks the token as permanently dead; callers must
	// not retry and should invalidate the token.
	DeviceNotRegistered bool
}

// Client wraps the Expo push SDK.
type Client struct {
	push *sdk.PushClient
}

// NewClient creates a gateway client. accessToken may be empty for projects
// without enhanced push security.
func NewClient(accessToken string) *Client {
	return &Client{
		push: sdk.NewPushClient(&sdk.ClientConfig{
			Host:        sdk.DefaultHost,
			APIURL:      sdk.DefaultBaseAPIURL,
			AccessToken: accessToken,
		}),
	}
}

// ValidToken reports whether token matches the gateway token grammar.
func (c *Client) ValidToken(token string) bool {
	return IsPushToken(token)
}

// Send delivers one message and returns the provider's ticket for it.
// A returned error means the request itself failed (network, 5xx) and the
// send may be retried; a ticket with OK=false is a provider-level verdict.
func (c *Client) Send(msg Message) (Ticket, error) {
	token, err := sdk.NewExponentPushToken(msg.Token)
	if err != nil {
		return Ticket{}, err
	}
	resp, err := c.push.Publish(&sdk.PushMessage{
		To:       []sdk.ExponentPushToken{token},
		Title:    msg.Title,
		Body:     msg.Body,
		Data:     msg.Data,
		Sound:    "default",
		Priority: sdk.HighPriority,
	})
	if err != nil {
		return Ticket{}, err
	}
	return ticketFrom(resp), nil
}

// SendBatch delivers messages in chunks of at most BatchLimit per gateway
// call and returns one ticket per message, in order. A chunk whose request
// fails outright yields failed tickets for every message in it; later chunks
// are still attempted.
func (c *Client) SendBatch(msgs []Message) []Ticket {
	tickets := make([]Ticket, 0, len(msgs))
	for start := 0; start < len(msgs); start += BatchLimit {
		end := start + BatchLimit
		if end > len(msgs) {
			end = len(msgs)
		}
		chunk := msgs[start:end]

		pushMsgs := make([]sdk.PushMessage, 0, len(chunk))
		for _, m := range chunk {
			token, err := sdk.NewExponentPushToken(m.Token)
			if err != nil {
				// Leave a placeholder so tickets stay aligned with msgs.
				pushMsgs = append(pushMsgs, sdk.PushMessage{})
				continue
			}
			pushMsgs = append(pushMsgs, sdk.PushMessage{
				To:       []sdk.ExponentPushToken{token},
				Title:    m.Title,
				Body:     m.Body,
				Data:     m.Data,
				Sound:    "default",
				Priority: sdk.HighPriority,
			})
		}

		responses, err := c.push.PublishMultiple(pushMsgs)
		if err != nil {
			for range chunk {
				tickets = append(tickets, Ticket{Reason: err.Error()})
			}
			continue
		}
		for _, resp := range responses {
			tickets = append(tickets, ticketFrom(resp))
		}
	}
	return tickets
}

func ticketFrom(resp sdk.PushResponse) Ticket {
	t := Ticket{OK: resp.Status == sdk.SuccessStatus, Reason: resp.Message}
	if !t.OK {
		if e, ok := resp.Details["error"]; ok && e == sdk.ErrorDeviceNotRegistered {
			t.DeviceNotRegistered = true
		}
	}
	return t
}
