package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/persistence"
	"github.com/spec-kit/ticket-engine/internal/repository"
	"github.com/spec-kit/ticket-engine/pkg/util/clock"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type storeFactory func(t *testing.T) repository.Store

func stores(t *testing.T) map[string]storeFactory {
	t.Helper()
	out := map[string]storeFactory{
		"memory": func(t *testing.T) repository.Store { return repository.NewMemoryStore() },
	}
	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		out["postgres"] = func(t *testing.T) repository.Store { return newPostgresStore(t, dsn) }
	}
	return out
}

func newPostgresStore(t *testing.T, dsn string) repository.Store {
	t.Helper()
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, persistence.RunMigrations(ctx, pool, zap.NewNop()))
	_, err = pool.Exec(ctx, `TRUNCATE ticket_audit_log, ticket_assignments, technicians, tickets RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return repository.NewPostgresStore(pool, repository.PostgresOptions{LockTimeout: 2 * time.Second})
}

// at binds a fixed clock; the Postgres store ignores it and uses the database clock.
func at(offset time.Duration) context.Context {
	return clock.With(context.Background(), clock.Fixed(base.Add(offset)))
}

func createTicket(t *testing.T, store repository.Store, title string, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{Title: title, Status: domain.TicketStatusOpen, Priority: priority}
	require.NoError(t, store.Tickets().Create(at(0), ticket))
	require.NotZero(t, ticket.ID)
	return ticket
}

func createTechnician(t *testing.T, store repository.Store, name string, active bool) *domain.Technician {
	t.Helper()
	technician := &domain.Technician{Name: name, Active: active}
	require.NoError(t, store.Technicians().Create(at(0), technician))
	require.NotZero(t, technician.ID)
	return technician
}

func TestStoreTickets(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			first := createTicket(t, store, "Printer jam", domain.TicketPriorityLow)
			second := createTicket(t, store, "VPN down", domain.TicketPriorityHigh)
			assert.Greater(t, second.ID, first.ID)

			got, err := store.Tickets().GetByID(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, "Printer jam", got.Title)
			assert.Equal(t, domain.TicketStatusOpen, got.Status)
			assert.Equal(t, domain.TicketPriorityLow, got.Priority)

			_, err = store.Tickets().GetByID(ctx, second.ID+100)
			assert.ErrorIs(t, err, repository.ErrNotFound)

			list, err := store.Tickets().List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, first.ID, list[0].ID)
			assert.Equal(t, second.ID, list[1].ID)

			got.Status = domain.TicketStatusClosed
			require.NoError(t, store.Tickets().UpdateStatus(ctx, got))
			reloaded, err := store.Tickets().GetByID(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.TicketStatusClosed, reloaded.Status)

			missing := &domain.Ticket{ID: second.ID + 100, Status: domain.TicketStatusClosed}
			assert.ErrorIs(t, store.Tickets().UpdateStatus(ctx, missing), repository.ErrNotFound)
		})
	}
}

func TestStoreRollback(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()
			ticket := createTicket(t, store, "Laptop", domain.TicketPriorityMedium)

			boom := errors.New("boom")
			err := store.WithTx(ctx, func(tx repository.Tx) error {
				locked, err := tx.Tickets().GetForUpdate(ctx, ticket.ID)
				if err != nil {
					return err
				}
				locked.Status = domain.TicketStatusAssigned
				if err := tx.Tickets().UpdateStatus(ctx, locked); err != nil {
					return err
				}
				if err := tx.Audit().Append(ctx, &domain.AuditEntry{
					TicketID:       ticket.ID,
					PreviousStatus: domain.TicketStatusOpen,
					NewStatus:      domain.TicketStatusAssigned,
				}); err != nil {
					return err
				}
				return boom
			})
			require.ErrorIs(t, err, boom)

			got, err := store.Tickets().GetByID(ctx, ticket.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.TicketStatusOpen, got.Status)

			entries, err := store.Audit().ListByTicket(ctx, ticket.ID)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestStoreAssignments(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			assigned := createTicket(t, store, "Monitor flicker", domain.TicketPriorityLow)
			unassigned := createTicket(t, store, "Keyboard", domain.TicketPriorityLow)
			alice := createTechnician(t, store, "Alice", true)
			bob := createTechnician(t, store, "Bob", true)

			require.NoError(t, store.Assignments().Upsert(ctx, &domain.Assignment{TicketID: assigned.ID, TechnicianID: alice.ID}))
			require.NoError(t, store.Assignments().Upsert(ctx, &domain.Assignment{TicketID: assigned.ID, TechnicianID: bob.ID}))

			current, err := store.Assignments().GetByTicket(ctx, assigned.ID)
			require.NoError(t, err)
			assert.Equal(t, bob.ID, current.TechnicianID)

			_, err = store.Assignments().GetByTicket(ctx, unassigned.ID)
			assert.ErrorIs(t, err, repository.ErrNotFound)

			rows, err := store.Tickets().ListWithTechnician(ctx)
			require.NoError(t, err)
			require.Len(t, rows, 2)
			require.NotNil(t, rows[0].TechnicianID)
			assert.Equal(t, bob.ID, *rows[0].TechnicianID)
			assert.Equal(t, "Bob", *rows[0].TechnicianName)
			assert.Nil(t, rows[1].TechnicianID)
			assert.Nil(t, rows[1].TechnicianName)
		})
	}
}

func TestStoreTechnicians(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			busy := createTechnician(t, store, "Carol", true)
			idle := createTechnician(t, store, "Dan", false)
			ticket := createTicket(t, store, "Badge reader", domain.TicketPriorityMedium)
			require.NoError(t, store.Assignments().Upsert(ctx, &domain.Assignment{TicketID: ticket.ID, TechnicianID: busy.ID}))

			list, err := store.Technicians().List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.True(t, list[0].Active)
			assert.False(t, list[1].Active)

			updated, err := store.Technicians().SetActive(ctx, idle.ID, true)
			require.NoError(t, err)
			assert.True(t, updated.Active)

			_, err = store.Technicians().SetActive(ctx, idle.ID+100, true)
			assert.ErrorIs(t, err, repository.ErrNotFound)

			assert.ErrorIs(t, store.Technicians().Delete(ctx, busy.ID), repository.ErrReferenced)
			require.NoError(t, store.Technicians().Delete(ctx, idle.ID))
			assert.ErrorIs(t, store.Technicians().Delete(ctx, idle.ID), repository.ErrNotFound)

			_, err = store.Technicians().GetByID(ctx, idle.ID)
			assert.ErrorIs(t, err, repository.ErrNotFound)
		})
	}
}

func TestStoreAuditOrdering(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ticket := createTicket(t, store, "Email bounce", domain.TicketPriorityLow)

			steps := []struct{ from, to domain.TicketStatus }{
				{domain.TicketStatusOpen, domain.TicketStatusAssigned},
				{domain.TicketStatusAssigned, domain.TicketStatusClosed},
			}
			for i, step := range steps {
				entry := &domain.AuditEntry{TicketID: ticket.ID, PreviousStatus: step.from, NewStatus: step.to}
				// later transitions carry an earlier clock; order follows ids
				require.NoError(t, store.Audit().Append(at(time.Duration(len(steps)-i)*time.Second), entry))
				assert.NotZero(t, entry.ID)
			}

			entries, err := store.Audit().ListByTicket(context.Background(), ticket.ID)
			require.NoError(t, err)
			require.Len(t, entries, 2)
			assert.Equal(t, domain.TicketStatusAssigned, entries[0].NewStatus)
			assert.Equal(t, domain.TicketStatusClosed, entries[1].NewStatus)
			assert.Less(t, entries[0].ID, entries[1].ID)
			if name == "postgres" {
				assert.False(t, entries[1].ChangedAt.Before(entries[0].ChangedAt))
			}

			none, err := store.Audit().ListByTicket(context.Background(), ticket.ID+100)
			require.NoError(t, err)
			assert.NotNil(t, none)
			assert.Empty(t, none)
		})
	}
}

func TestStoreEscalateOverdue(t *testing.T) {
	for name, factory := range stores(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			low := createTicket(t, store, "low", domain.TicketPriorityLow)
			medium := createTicket(t, store, "medium", domain.TicketPriorityMedium)
			high := createTicket(t, store, "high", domain.TicketPriorityHigh)
			closed := createTicket(t, store, "closed", domain.TicketPriorityLow)
			closed.Status = domain.TicketStatusClosed
			require.NoError(t, store.Tickets().UpdateStatus(ctx, closed))

			later := at(time.Hour)
			escalated, err := store.Tickets().EscalateOverdue(later, 0)
			require.NoError(t, err)
			require.Len(t, escalated, 3)

			want := map[int64]domain.TicketPriority{
				low.ID:    domain.TicketPriorityMedium,
				medium.ID: domain.TicketPriorityHigh,
				high.ID:   domain.TicketPriorityHigh,
			}
			for _, item := range escalated {
				assert.Equal(t, want[item.TicketID], item.NewPriority)
				assert.Equal(t, domain.TicketStatusOpen, item.PreviousStatus)
				assert.Equal(t, domain.TicketStatusEscalated, item.NewStatus)
				assert.True(t, item.StatusChanged())
			}

			again, err := store.Tickets().EscalateOverdue(later, 0)
			require.NoError(t, err)
			assert.Empty(t, again)

			untouched, err := store.Tickets().GetByID(ctx, closed.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.TicketStatusClosed, untouched.Status)
			assert.Equal(t, domain.TicketPriorityLow, untouched.Priority)
		})
	}
}

func TestMemoryStoreEscalationRespectsThreshold(t *testing.T) {
	store := repository.NewMemoryStore()
	ticket := createTicket(t, store, "fresh", domain.TicketPriorityLow)

	escalated, err := store.Tickets().EscalateOverdue(at(2*time.Minute), 3*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, escalated)

	// exactly at the threshold is not yet overdue
	escalated, err = store.Tickets().EscalateOverdue(at(3*time.Minute), 3*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, escalated)

	escalated, err = store.Tickets().EscalateOverdue(at(3*time.Minute+time.Second), 3*time.Minute)
	require.NoError(t, err)
	require.Len(t, escalated, 1)
	assert.Equal(t, ticket.ID, escalated[0].TicketID)
}

func TestMemoryStoreReadsReturnCopies(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	ticket := createTicket(t, store, "Projector", domain.TicketPriorityLow)
	technician := createTechnician(t, store, "Erin", true)
	require.NoError(t, store.Assignments().Upsert(ctx, &domain.Assignment{TicketID: ticket.ID, TechnicianID: technician.ID}))
	require.NoError(t, store.Audit().Append(ctx, &domain.AuditEntry{
		TicketID: ticket.ID, PreviousStatus: domain.TicketStatusOpen, NewStatus: domain.TicketStatusAssigned,
	}))

	got, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	got.Status = domain.TicketStatusClosed
	list, err := store.Tickets().List(ctx)
	require.NoError(t, err)
	list[0].Title = "changed"
	tech, err := store.Technicians().GetByID(ctx, technician.ID)
	require.NoError(t, err)
	tech.Active = false
	assignment, err := store.Assignments().GetByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assignment.TechnicianID = 0
	entries, err := store.Audit().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	entries[0].NewStatus = domain.TicketStatusClosed

	fresh, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, fresh.Status)
	assert.Equal(t, "Projector", fresh.Title)
	freshTech, err := store.Technicians().GetByID(ctx, technician.ID)
	require.NoError(t, err)
	assert.True(t, freshTech.Active)
	freshAssignment, err := store.Assignments().GetByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, technician.ID, freshAssignment.TechnicianID)
	freshEntries, err := store.Audit().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAssigned, freshEntries[0].NewStatus)
}

func TestMemoryStoreReadsWaitForWriters(t *testing.T) {
	store := repository.NewMemoryStore()
	ticket := createTicket(t, store, "Scanner", domain.TicketPriorityLow)

	inTx := make(chan struct{})
	proceed := make(chan struct{})
	committed := make(chan error, 1)
	go func() {
		committed <- store.WithTx(context.Background(), func(tx repository.Tx) error {
			locked, err := tx.Tickets().GetForUpdate(context.Background(), ticket.ID)
			if err != nil {
				return err
			}
			locked.Status = domain.TicketStatusEscalated
			if err := tx.Tickets().UpdateStatus(context.Background(), locked); err != nil {
				return err
			}
			close(inTx)
			<-proceed
			return nil
		})
	}()
	<-inTx

	read := make(chan domain.TicketStatus, 1)
	go func() {
		got, err := store.Tickets().GetByID(context.Background(), ticket.ID)
		if err == nil {
			read <- got.Status
		}
		close(read)
	}()
	select {
	case <-read:
		t.Fatal("read observed an uncommitted transaction")
	case <-time.After(20 * time.Millisecond):
	}
	close(proceed)
	require.NoError(t, <-committed)
	assert.Equal(t, domain.TicketStatusEscalated, <-read)
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.WithTx(ctx, func(tx repository.Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
