package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"libraflow/internal/catalog"
	"libraflow/internal/membership"
	"libraflow/internal/policy"
)

func (c *Client) GetItem(ctx context.Context, id uuid.UUID) (*catalog.Item, error) {
	var item catalog.Item
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/items/%s", id), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) ListItems(ctx context.Context) ([]*catalog.Item, error) {
	var items []*catalog.Item
	if err := c.do(ctx, http.MethodGet, "/items", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddItem catalogs an item on behalf of actorID, who must be a librarian.
func (c *Client) AddItem(ctx context.Context, actorID uuid.UUID, title, authors string, itemType catalog.ItemType, copies int) (*catalog.Item, error) {
	req := struct {
		ActorID  string `json:"actor_id"`
		Title    string `json:"title"`
		Authors  string `json:"authors"`
		ItemType string `json:"item_type"`
		Copies   int    `json:"copies"`
	}{actorID.String(), title, authors, string(itemType), copies}

	var item catalog.Item
	if err := c.do(ctx, http.MethodPost, "/items", req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) GetMember(ctx context.Context, id uuid.UUID) (*membership.Member, error) {
	var m membership.Member
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/members/%s", id), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) RegisterMember(ctx context.Context, name, email string, role policy.Role) (*membership.Member, error) {
	req := struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}{name, email, string(role)}

	var m membership.Member
	if err := c.do(ctx, http.MethodPost, "/members", req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
