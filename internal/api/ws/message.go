// Package ws provides the websocket transport and the protocol router.
package ws

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/osa030/satsbox/internal/app/rooms"
)

// Envelope is the wire frame for every message in both directions. The id is
// an opaque token used for message identity, not request/response matching.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"` // epoch ms
}

// parseEnvelope decodes and minimally validates an inbound frame.
func parseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "malformed envelope")
	}
	if env.Type == "" {
		return nil, errors.New("envelope is missing a type")
	}
	return &env, nil
}

// encodeMessage builds a serialized envelope around a payload.
func encodeMessage(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode payload")
	}
	return json.Marshal(Envelope{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now().UnixMilli(),
	})
}

// decodePayload unmarshals an envelope payload into dst. An absent payload
// leaves dst at its zero value.
func decodePayload(env *Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return errors.Wrap(err, "malformed payload")
	}
	return nil
}

// ErrorKind enumerates the structured failure kinds sent in room-error.
type ErrorKind string

const (
	ErrRoomNotFound      ErrorKind = "room_not_found"
	ErrAlreadyInRoom     ErrorKind = "already_in_room"
	ErrNotInRoom         ErrorKind = "not_in_room"
	ErrNotHost           ErrorKind = "not_host"
	ErrInvalidCode       ErrorKind = "invalid_code"
	ErrInvalidWalletConn ErrorKind = "invalid_wallet_connection"
	ErrInvoice           ErrorKind = "invoice_error"
)

// Inbound payloads.

type createRoomPayload struct {
	WalletConnection string `json:"walletConnection"`
	Name             string `json:"name"`
}

type joinRoomPayload struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
}

type roomCodePayload struct {
	RoomCode string `json:"roomCode"`
}

type hostRejoinPayload struct {
	RoomCode  string `json:"roomCode"`
	HostToken string `json:"hostToken"`
	Name      string `json:"name"`
}

type roomMessagePayload struct {
	RoomCode string          `json:"roomCode"`
	Content  json.RawMessage `json:"content"`
}

type makeRequestPayload struct {
	RoomCode string `json:"roomCode"`
	Amount   int64  `json:"amount"` // sats
	URL      string `json:"url"`
	Comment  string `json:"comment,omitempty"`
}

type hostRequestPayload struct {
	RoomCode string `json:"roomCode"`
	URL      string `json:"url"`
}

type pingPayload struct {
	Time int64 `json:"time"`
}

// Outbound payloads.

type welcomePayload struct {
	ClientID string `json:"clientId"`
}

type roomCreatedPayload struct {
	*rooms.View
	HostToken string `json:"hostToken"`
}

type roomLeftPayload struct {
	RoomCode string `json:"roomCode"`
}

type roomClosedPayload struct {
	RoomCode string `json:"roomCode"`
	Reason   string `json:"reason"`
}

type userJoinedPayload struct {
	RoomCode string `json:"roomCode"`
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
}

type userLeftPayload struct {
	RoomCode string `json:"roomCode"`
	ClientID string `json:"clientId"`
}

type roomMessageBroadcast struct {
	RoomCode   string          `json:"roomCode"`
	SenderID   string          `json:"senderId"`
	SenderName string          `json:"senderName"`
	Content    json.RawMessage `json:"content"`
	IsHost     bool            `json:"isHost"`
}

type invoiceGeneratedPayload struct {
	Invoice generatedInvoice `json:"invoice"`
}

type generatedInvoice struct {
	PR          string `json:"pr"` // BOLT11 payment request
	PaymentHash string `json:"paymentHash"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	ExpiresAt   int64  `json:"expiresAt"` // epoch seconds
}

type invoicePaidPayload struct {
	RoomCode string `json:"roomCode"`
	ClientID string `json:"clientId"`
	Success  bool   `json:"success"`
	URL      string `json:"url"`
	Amount   int64  `json:"amount"`
}

type roomErrorPayload struct {
	Error    ErrorKind `json:"error"`
	Message  string    `json:"message"`
	RoomCode string    `json:"roomCode,omitempty"`
}

type pongPayload struct {
	OriginalTime int64 `json:"originalTime"`
	ServerTime   int64 `json:"serverTime"`
}
