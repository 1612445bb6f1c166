package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/pkg/util/clock"
)

// MemoryStore is an in-process Store used for tests and for running without
// a database. Transactions are serialized by a single mutex and applied to a
// copy of the state that replaces the live one on commit.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

var _ Store = (*MemoryStore)(nil)

type memoryState struct {
	tickets          map[int64]domain.Ticket
	technicians      map[int64]domain.Technician
	assignments      map[int64]domain.Assignment
	audit            []domain.AuditEntry
	nextTicketID     int64
	nextTechnicianID int64
	nextAuditID      int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		tickets:          make(map[int64]domain.Ticket),
		technicians:      make(map[int64]domain.Technician),
		assignments:      make(map[int64]domain.Assignment),
		audit:            make([]domain.AuditEntry, 0, 64),
		nextTicketID:     1,
		nextTechnicianID: 1,
		nextAuditID:      1,
	}}
}

func (s *memoryState) clone() *memoryState {
	out := &memoryState{
		tickets:          make(map[int64]domain.Ticket, len(s.tickets)),
		technicians:      make(map[int64]domain.Technician, len(s.technicians)),
		assignments:      make(map[int64]domain.Assignment, len(s.assignments)),
		audit:            append(make([]domain.AuditEntry, 0, len(s.audit)+8), s.audit...),
		nextTicketID:     s.nextTicketID,
		nextTechnicianID: s.nextTechnicianID,
		nextAuditID:      s.nextAuditID,
	}
	for k, v := range s.tickets {
		out.tickets[k] = v
	}
	for k, v := range s.technicians {
		out.technicians[k] = v
	}
	for k, v := range s.assignments {
		out.assignments[k] = v
	}
	return out
}

// memoryExec runs fn against a state snapshot.
type memoryExec func(ctx context.Context, fn func(st *memoryState) error) error

// apply is the autocommit executor for writes.
func (m *MemoryStore) apply(ctx context.Context, fn func(st *memoryState) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	working := m.state.clone()
	if err := fn(working); err != nil {
		return err
	}
	m.state = working
	return nil
}

// view is the autocommit executor for reads; fn must not mutate st.
func (m *MemoryStore) view(ctx context.Context, fn func(st *memoryState) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.state)
}

func (m *MemoryStore) Tickets() TicketRepository {
	return &memoryTickets{exec: m.apply, view: m.view}
}

func (m *MemoryStore) Technicians() TechnicianRepository {
	return &memoryTechnicians{exec: m.apply, view: m.view}
}

func (m *MemoryStore) Assignments() AssignmentRepository {
	return &memoryAssignments{exec: m.apply, view: m.view}
}

func (m *MemoryStore) Audit() AuditRepository {
	return &memoryAudit{exec: m.apply, view: m.view}
}

// Ping always succeeds.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// WithTx holds the store lock for the whole of fn, so concurrent transactions
// observe each other only after commit.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return m.apply(ctx, func(st *memoryState) error {
		bound := func(ctx context.Context, inner func(st *memoryState) error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return inner(st)
		}
		return fn(&memoryTx{exec: bound})
	})
}

type memoryTx struct {
	exec memoryExec
}

func (t *memoryTx) Tickets() TicketRepository {
	return &memoryTickets{exec: t.exec, view: t.exec}
}

func (t *memoryTx) Technicians() TechnicianRepository {
	return &memoryTechnicians{exec: t.exec, view: t.exec}
}

func (t *memoryTx) Assignments() AssignmentRepository {
	return &memoryAssignments{exec: t.exec, view: t.exec}
}

func (t *memoryTx) Audit() AuditRepository {
	return &memoryAudit{exec: t.exec, view: t.exec}
}

type memoryTickets struct {
	exec memoryExec
	view memoryExec
}

func (r *memoryTickets) Create(ctx context.Context, ticket *domain.Ticket) error {
	return r.exec(ctx, func(st *memoryState) error {
		now := clock.Now(ctx)
		ticket.ID = st.nextTicketID
		st.nextTicketID++
		ticket.CreatedAt = now
		ticket.UpdatedAt = now
		st.tickets[ticket.ID] = *ticket
		return nil
	})
}

func (r *memoryTickets) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.view(ctx, func(st *memoryState) error {
		ticket, ok := st.tickets[id]
		if !ok {
			return ErrNotFound
		}
		out = &ticket
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock: transactions already run one at a time.
func (r *memoryTickets) GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryTickets) List(ctx context.Context) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	err := r.view(ctx, func(st *memoryState) error {
		for _, id := range sortedKeys(st.tickets) {
			result = append(result, st.tickets[id])
		}
		return nil
	})
	return result, err
}

func (r *memoryTickets) ListWithTechnician(ctx context.Context) ([]domain.TicketWithTechnician, error) {
	result := []domain.TicketWithTechnician{}
	err := r.view(ctx, func(st *memoryState) error {
		for _, id := range sortedKeys(st.tickets) {
			item := domain.TicketWithTechnician{Ticket: st.tickets[id]}
			if assignment, ok := st.assignments[id]; ok {
				if technician, ok := st.technicians[assignment.TechnicianID]; ok {
					techID, name := technician.ID, technician.Name
					item.TechnicianID = &techID
					item.TechnicianName = &name
				}
			}
			result = append(result, item)
		}
		return nil
	})
	return result, err
}

func (r *memoryTickets) UpdateStatus(ctx context.Context, ticket *domain.Ticket) error {
	return r.exec(ctx, func(st *memoryState) error {
		current, ok := st.tickets[ticket.ID]
		if !ok {
			return ErrNotFound
		}
		current.Status = ticket.Status
		current.UpdatedAt = clock.Now(ctx)
		st.tickets[ticket.ID] = current
		ticket.UpdatedAt = current.UpdatedAt
		return nil
	})
}

func (r *memoryTickets) EscalateOverdue(ctx context.Context, threshold time.Duration) ([]domain.EscalatedTicket, error) {
	result := []domain.EscalatedTicket{}
	err := r.exec(ctx, func(st *memoryState) error {
		now := clock.Now(ctx)
		cutoff := now.Add(-threshold)
		for _, id := range sortedKeys(st.tickets) {
			ticket := st.tickets[id]
			if ticket.Status != domain.TicketStatusOpen || !ticket.CreatedAt.Before(cutoff) {
				continue
			}
			item := domain.EscalatedTicket{
				TicketID:         id,
				PreviousStatus:   ticket.Status,
				NewStatus:        ticket.Status,
				PreviousPriority: ticket.Priority,
				NewPriority:      ticket.Priority.Escalated(),
			}
			if item.NewPriority <= domain.EscalationPriorityCeiling {
				item.NewStatus = domain.TicketStatusEscalated
			}
			ticket.Priority = item.NewPriority
			ticket.Status = item.NewStatus
			ticket.UpdatedAt = now
			st.tickets[id] = ticket
			result = append(result, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type memoryTechnicians struct {
	exec memoryExec
	view memoryExec
}

func (r *memoryTechnicians) Create(ctx context.Context, technician *domain.Technician) error {
	return r.exec(ctx, func(st *memoryState) error {
		technician.ID = st.nextTechnicianID
		st.nextTechnicianID++
		technician.CreatedAt = clock.Now(ctx)
		st.technicians[technician.ID] = *technician
		return nil
	})
}

func (r *memoryTechnicians) GetByID(ctx context.Context, id int64) (*domain.Technician, error) {
	var out *domain.Technician
	err := r.view(ctx, func(st *memoryState) error {
		technician, ok := st.technicians[id]
		if !ok {
			return ErrNotFound
		}
		out = &technician
		return nil
	})
	return out, err
}

func (r *memoryTechnicians) GetForShare(ctx context.Context, id int64) (*domain.Technician, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryTechnicians) List(ctx context.Context) ([]domain.Technician, error) {
	result := []domain.Technician{}
	err := r.view(ctx, func(st *memoryState) error {
		for _, id := range sortedKeys(st.technicians) {
			result = append(result, st.technicians[id])
		}
		return nil
	})
	return result, err
}

func (r *memoryTechnicians) SetActive(ctx context.Context, id int64, active bool) (*domain.Technician, error) {
	var out *domain.Technician
	err := r.exec(ctx, func(st *memoryState) error {
		technician, ok := st.technicians[id]
		if !ok {
			return ErrNotFound
		}
		technician.Active = active
		st.technicians[id] = technician
		out = &technician
		return nil
	})
	return out, err
}

func (r *memoryTechnicians) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, func(st *memoryState) error {
		if _, ok := st.technicians[id]; !ok {
			return ErrNotFound
		}
		for _, assignment := range st.assignments {
			if assignment.TechnicianID == id {
				return ErrReferenced
			}
		}
		delete(st.technicians, id)
		return nil
	})
}

type memoryAssignments struct {
	exec memoryExec
	view memoryExec
}

func (r *memoryAssignments) Upsert(ctx context.Context, assignment *domain.Assignment) error {
	return r.exec(ctx, func(st *memoryState) error {
		if _, ok := st.tickets[assignment.TicketID]; !ok {
			return ErrReferenced
		}
		if _, ok := st.technicians[assignment.TechnicianID]; !ok {
			return ErrReferenced
		}
		assignment.AssignedAt = clock.Now(ctx)
		st.assignments[assignment.TicketID] = *assignment
		return nil
	})
}

func (r *memoryAssignments) GetByTicket(ctx context.Context, ticketID int64) (*domain.Assignment, error) {
	var out *domain.Assignment
	err := r.view(ctx, func(st *memoryState) error {
		assignment, ok := st.assignments[ticketID]
		if !ok {
			return ErrNotFound
		}
		out = &assignment
		return nil
	})
	return out, err
}

type memoryAudit struct {
	exec memoryExec
	view memoryExec
}

func (r *memoryAudit) Append(ctx context.Context, entry *domain.AuditEntry) error {
	return r.exec(ctx, func(st *memoryState) error {
		if _, ok := st.tickets[entry.TicketID]; !ok {
			return ErrReferenced
		}
		entry.ID = st.nextAuditID
		st.nextAuditID++
		entry.ChangedAt = clock.Now(ctx)
		st.audit = append(st.audit, *entry)
		return nil
	})
}

// ListByTicket returns entries in append order, which is id order.
func (r *memoryAudit) ListByTicket(ctx context.Context, ticketID int64) ([]domain.AuditEntry, error) {
	result := []domain.AuditEntry{}
	err := r.view(ctx, func(st *memoryState) error {
		for _, entry := range st.audit {
			if entry.TicketID == ticketID {
				result = append(result, entry)
			}
		}
		return nil
	})
	return result, err
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
