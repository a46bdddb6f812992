package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropbox/godropbox/time2"
	"github.com/google/uuid"
	"github.com/layer-3/flowauth/core"
	"github.com/layer-3/flowauth/internal/logging"
	"github.com/layer-3/flowauth/ports"
)

// DAOService creates DAO documents on behalf of authenticated users
type DAOService struct {
	store ports.DAOStore
	clock time2.Clock
}

// NewDAOService creates a new DAO service
func NewDAOService(store ports.DAOStore, clock time2.Clock) *DAOService {
	if clock == nil {
		clock = time2.DefaultClock
	}
	return &DAOService{store: store, clock: clock}
}

// CreateDAO stores a new DAO. The creator must appear among the initial members.
func (s *DAOService) CreateDAO(ctx context.Context, creator, name string, members []core.Member) (*core.DAO, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", core.ErrInvalidDAO)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: at least one member is required", core.ErrInvalidDAO)
	}

	creator = memberID(creator)
	dao := &core.DAO{
		ID:        uuid.New().String(),
		Name:      name,
		MemberIDs: make([]string, 0, len(members)),
		Members:   make([]core.Member, 0, len(members)),
		CreatedBy: creator,
		CreatedAt: s.clock.Now().UTC(),
	}
	for _, m := range members {
		m.ID = memberID(m.ID)
		if m.ID == "" {
			return nil, fmt.Errorf("%w: member id is required", core.ErrInvalidDAO)
		}
		dao.MemberIDs = append(dao.MemberIDs, m.ID)
		dao.Members = append(dao.Members, m)
	}

	if !dao.HasMember(creator) {
		return nil, core.ErrCreatorNotMember
	}

	if err := s.store.CreateDAO(ctx, dao); err != nil {
		return nil, fmt.Errorf("failed to store dao: %w", err)
	}

	logging.FromContext(ctx).Info().Str("dao_id", dao.ID).Str("creator", creator).Msg("dao created")

	return dao, nil
}

// memberID puts Flow addresses in canonical form and leaves other ids trimmed
func memberID(id string) string {
	id = strings.TrimSpace(id)
	if address, err := core.NormalizeAddress(id); err == nil {
		return address
	}
	return id
}
