package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luximus/flowbot/model"
)

// StorageLayerError reports that the backing store could not be reached or refused a command.
type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

var ErrNotFound = errors.New("not found")

const FLOW_KEY string = "flow"
const SHORT_LINK_KEY string = "short"

const DefaultFlowTTL = time.Hour

// FlowDao stores one FlowState document per (kind, subject). Every save refreshes the TTL;
// an expired or never-written key is reported as ErrNotFound.
type FlowDao interface {
	GetFlowState(ctx context.Context, flowKind string, subjectId string) (*model.FlowState, error)
	SaveFlowState(ctx context.Context, state *model.FlowState) error
	DeleteFlowState(ctx context.Context, flowKind string, subjectId string) error
}

type UserDao interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*model.User, error)
	UpdateUser(ctx context.Context, id string, update model.UserUpdate) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
	// ListRunningIntegrations returns every user whose integration marker is set.
	ListRunningIntegrations(ctx context.Context) ([]*model.User, error)
}

type ShortLinkDao interface {
	SaveLink(ctx context.Context, code string, url string, ttl time.Duration) error
	GetLink(ctx context.Context, code string) (string, error)
}

func FlowKey(namespace string, flowKind string, subjectId string) string {
	return Key(namespace, FLOW_KEY, flowKind, subjectId)
}

// Key joins parts with ':' and prefixes the namespace when one is configured.
func Key(namespace string, parts ...string) string {
	if len(namespace) > 0 {
		parts = append([]string{namespace}, parts...)
	}
	return strings.Join(parts, ":")
}
