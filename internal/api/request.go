package api

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"fitshare/fitness-api/internal/domain"
)

// pathID parses the ObjectID route parameter name.
func pathID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		badRequest(c, fmt.Errorf("invalid %s %q", name, c.Param(name)))
		return primitive.NilObjectID, false
	}
	return id, true
}

// targetUser reads the optional ?user_id= naming whom a create or list acts for.
func targetUser(c *gin.Context) (*primitive.ObjectID, bool) {
	raw := c.Query("user_id")
	if raw == "" {
		return nil, true
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		badRequest(c, fmt.Errorf("invalid user_id %q", raw))
		return nil, false
	}
	return &id, true
}

// pageRequest reads ?limit= and ?start= (0-based page).
func pageRequest(c *gin.Context) (domain.PageRequest, bool) {
	var p domain.PageRequest
	for name, dst := range map[string]*int64{"limit": &p.Limit, "start": &p.Start} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, fmt.Errorf("invalid %s %q", name, raw))
			return p, false
		}
		*dst = v
	}
	return p.Normalize(), true
}

func objectIDs(hexes []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		id, err := primitive.ObjectIDFromHex(h)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", h)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// PageResponse is the envelope of every list endpoint.
type PageResponse[T any] struct {
	Items []T             `json:"items"`
	Meta  domain.PageMeta `json:"meta"`
}

func mapPage[T, R any](page *domain.Page[T], conv func(*T) R) PageResponse[R] {
	items := make([]R, len(page.Items))
	for i := range page.Items {
		items[i] = conv(&page.Items[i])
	}
	return PageResponse[R]{Items: items, Meta: page.Meta}
}
