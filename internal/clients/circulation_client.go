package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"libraflow/internal/circulation"
	"libraflow/internal/reservation"
)

type memberRequest struct {
	UserID string `json:"user_id"`
}

// UndoResult mirrors the undo endpoint's body.
type UndoResult struct {
	Command string `json:"command,omitempty"`
	Undone  bool   `json:"undone"`
	Error   string `json:"error,omitempty"`
}

func itemPath(itemID uuid.UUID, action string) string {
	return fmt.Sprintf("/items/%s/%s", itemID, action)
}

func (c *Client) Borrow(ctx context.Context, itemID, userID uuid.UUID) (*circulation.Transaction, error) {
	var tx circulation.Transaction
	if err := c.do(ctx, http.MethodPost, itemPath(itemID, "borrow"), memberRequest{userID.String()}, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) Reserve(ctx context.Context, itemID, userID uuid.UUID) (*reservation.Reservation, error) {
	var r reservation.Reservation
	if err := c.do(ctx, http.MethodPost, itemPath(itemID, "reserve"), memberRequest{userID.String()}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) Return(ctx context.Context, itemID, userID uuid.UUID, damaged bool) (*circulation.Transaction, error) {
	req := struct {
		UserID  string `json:"user_id"`
		Damaged bool   `json:"damaged"`
	}{userID.String(), damaged}

	var tx circulation.Transaction
	if err := c.do(ctx, http.MethodPost, itemPath(itemID, "return"), req, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) Revoke(ctx context.Context, itemID, userID uuid.UUID) error {
	return c.do(ctx, http.MethodPost, itemPath(itemID, "revoke"), memberRequest{userID.String()}, nil)
}

func (c *Client) CancelReservation(ctx context.Context, itemID, userID uuid.UUID) error {
	return c.do(ctx, http.MethodPost, itemPath(itemID, "cancel-reservation"), memberRequest{userID.String()}, nil)
}

func (c *Client) ReviewComplete(ctx context.Context, itemID, actorID uuid.UUID, resolved bool) error {
	req := struct {
		ActorID  string `json:"actor_id"`
		Resolved bool   `json:"resolved"`
	}{actorID.String(), resolved}
	return c.do(ctx, http.MethodPost, itemPath(itemID, "review"), req, nil)
}

func (c *Client) Undo(ctx context.Context, userID uuid.UUID) (*UndoResult, error) {
	var res UndoResult
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/members/%s/undo", userID), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Queue(ctx context.Context, itemID uuid.UUID) ([]*reservation.Reservation, error) {
	var rs []*reservation.Reservation
	if err := c.do(ctx, http.MethodGet, itemPath(itemID, "queue"), nil, &rs); err != nil {
		return nil, err
	}
	return rs, nil
}
