package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence"
	"github.com/dukex/relay/pkg/persistence/postgresql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{
		"enrollments", "messages", "connections", "templates", "crm_stages", "crm_boards",
		"deferred_tasks", "contacts", "automation_node_stats", "automations", "schema_migrations",
	} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("relay_test"),
			postgres.WithUsername("relay"),
			postgres.WithPassword("relay"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func vipAutomation() *models.Automation {
	return &models.Automation{
		Name:   "VIP welcome",
		Status: models.AutomationStatusActive,
		Nodes: []*models.Node{
			{ID: "trigger", Kind: models.NodeKindTrigger, Subtype: models.SubtypeWebhook, Data: &models.WebhookTrigger{WebhookID: "hook-1"}},
			{
				ID: "check", Kind: models.NodeKindAction, Subtype: models.SubtypeConditional,
				Data: &models.ConditionalAction{
					Logic:      models.LogicAnd,
					Conditions: models.Conditions{models.TagCondition{Operator: models.OperatorContains, Tag: "vip"}},
				},
			},
			{ID: "wait", Kind: models.NodeKindAction, Subtype: models.SubtypeWait, Data: &models.WaitAction{Delay: 5, Unit: models.DelayUnitMinutes}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "trigger", Target: "check"},
			{ID: "e2", Source: "check", Target: "wait", SourceHandle: &[]string{models.HandleTrue}[0]},
		},
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)

	require.NoError(t, p.HealthCheck(ctx))

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	for _, table := range []string{"automations", "deferred_tasks", "enrollments", "crm_stages"} {
		var exists bool

		err = db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)", table,
		).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}
}

func TestAutomationRepository(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.AutomationRepository()

	automation := vipAutomation()
	automation.Stats = models.Stats{"trigger": {Total: 3, Success: 3}}

	require.NoError(t, repo.SaveAutomation(ctx, automation))
	assert.NotEmpty(t, automation.ID)

	loaded, err := repo.AutomationByID(ctx, automation.ID)
	require.NoError(t, err)
	assert.Equal(t, automation.Name, loaded.Name)
	require.Len(t, loaded.Nodes, 3)
	require.Len(t, loaded.Edges, 2)
	assert.Equal(t, models.HandleTrue, loaded.Edges[1].Handle())

	conditional, ok := loaded.Nodes[1].Data.(*models.ConditionalAction)
	require.True(t, ok)
	assert.Equal(t, models.TagCondition{Operator: models.OperatorContains, Tag: "vip"}, conditional.Conditions[0])
	assert.Equal(t, models.NodeStats{Total: 3, Success: 3}, loaded.Stats["trigger"])

	byWebhook, err := repo.AutomationByWebhookID(ctx, "hook-1")
	require.NoError(t, err)
	assert.Equal(t, automation.ID, byWebhook.ID)

	_, err = repo.AutomationByWebhookID(ctx, "unknown")
	assert.ErrorIs(t, err, persistence.ErrAutomationNotFound)

	all, err := repo.Automations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.DeleteAutomation(ctx, automation.ID))

	_, err = repo.AutomationByID(ctx, automation.ID)
	assert.True(t, persistence.IsAutomationNotFound(err))

	err = repo.DeleteAutomation(ctx, automation.ID)
	assert.ErrorIs(t, err, persistence.ErrAutomationNotFound)
}

func TestAutomationRepository_IncrementNodeStatsConcurrently(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.AutomationRepository()

	automation := vipAutomation()
	require.NoError(t, repo.SaveAutomation(ctx, automation))

	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			err := repo.IncrementNodeStats(ctx, automation.ID, models.Stats{
				"trigger": {Total: 1, Success: 1},
				"check":   {Total: 1, Error: 1},
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	loaded, err := repo.AutomationByID(ctx, automation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NodeStats{Total: 20, Success: 20}, loaded.Stats["trigger"])
	assert.Equal(t, models.NodeStats{Total: 20, Error: 20}, loaded.Stats["check"])

	err = repo.IncrementNodeStats(ctx, "missing", models.Stats{"x": {Total: 1}})
	assert.ErrorIs(t, err, persistence.ErrAutomationNotFound)
}

func TestContactRepository(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.ContactRepository()

	contact := &models.Contact{ID: "7", Name: "Ana", Phone: "+5511999990000", Tags: []string{"vip"}}
	require.NoError(t, repo.SaveContact(ctx, contact))

	windowOpen := true

	updated, err := repo.UpdateContact(ctx, "7", models.ContactPatch{
		WindowOpen: &windowOpen,
		Tags:       []string{"vip", "Ana-welcomed"},
		Fields:     map[string]any{"plan": "gold"},
	})
	require.NoError(t, err)
	assert.True(t, updated.WindowOpen)

	loaded, err := repo.ContactByID(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, []string{"vip", "Ana-welcomed"}, loaded.Tags)
	assert.Equal(t, "gold", loaded.Fields["plan"])
	assert.True(t, loaded.WindowOpen)

	_, err = repo.ContactByID(ctx, "missing")
	assert.ErrorIs(t, err, persistence.ErrContactNotFound)

	_, err = repo.UpdateContact(ctx, "missing", models.ContactPatch{})
	assert.ErrorIs(t, err, persistence.ErrContactNotFound)
}

func TestDeferredTaskRepository(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.DeferredTaskRepository()
	now := time.Now().UTC()

	due := &models.DeferredTask{
		AutomationID: "a", ContactID: "7", ResumeNodeID: "send", FireAt: now.Add(-time.Minute),
		Context: map[string]any{"event": map[string]any{"tag_name": "vip"}},
	}
	future := &models.DeferredTask{AutomationID: "a", ContactID: "7", ResumeNodeID: "send", FireAt: now.Add(time.Hour)}

	require.NoError(t, repo.CreateTask(ctx, due))
	require.NoError(t, repo.CreateTask(ctx, future))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed []*models.DeferredTask
	)

	for range 5 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			tasks, err := repo.ClaimDueTasks(ctx, now, 10)
			assert.NoError(t, err)

			mu.Lock()
			claimed = append(claimed, tasks...)
			mu.Unlock()
		}()
	}

	wg.Wait()

	require.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)
	assert.Equal(t, models.TaskStatusProcessing, claimed[0].Status)
	assert.Equal(t, map[string]any{"event": map[string]any{"tag_name": "vip"}}, claimed[0].Context)

	require.NoError(t, repo.MarkFailed(ctx, due.ID, "automation missing"))

	failed, err := repo.TaskByID(ctx, due.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, failed.Status)
	assert.Equal(t, "automation missing", failed.Error)

	assert.ErrorIs(t, repo.MarkProcessed(ctx, due.ID), persistence.ErrTaskNotClaimable)
	assert.ErrorIs(t, repo.MarkProcessed(ctx, "missing"), persistence.ErrTaskNotFound)

	pending, err := repo.Tasks(ctx, models.TaskStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, future.ID, pending[0].ID)

	all, err := repo.Tasks(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCRMAndMessagingRepositories(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	require.NoError(t, p.CRMRepository().SaveBoard(ctx, &models.Board{
		ID: "sales", Name: "Sales",
		Stages: []*models.Stage{{ID: "lead", Name: "Lead"}, {ID: "won", Name: "Won", Tags: []string{"customer"}}},
	}))
	require.NoError(t, p.CRMRepository().SaveBoard(ctx, &models.Board{ID: "empty", Name: "Empty"}))

	boards, err := p.CRMRepository().Boards(ctx)
	require.NoError(t, err)
	require.Len(t, boards, 2)
	assert.Empty(t, boards[0].Stages)
	assert.Len(t, boards[1].Stages, 2)

	stage, err := p.CRMRepository().StageByID(ctx, "won")
	require.NoError(t, err)
	assert.Equal(t, "sales", stage.BoardID)
	assert.Equal(t, []string{"customer"}, stage.Tags)

	_, err = p.CRMRepository().StageByID(ctx, "lost")
	assert.ErrorIs(t, err, persistence.ErrStageNotFound)

	_, err = p.ConnectionRepository().ActiveConnection(ctx)
	assert.ErrorIs(t, err, persistence.ErrConnectionNotFound)

	require.NoError(t, p.ConnectionRepository().SaveConnection(ctx, &models.Connection{
		ID: "main", PhoneNumberID: "123", AccessToken: "token", Active: true,
	}))

	connection, err := p.ConnectionRepository().ActiveConnection(ctx)
	require.NoError(t, err)
	assert.Equal(t, "123", connection.PhoneNumberID)

	require.NoError(t, p.TemplateRepository().SaveTemplate(ctx, &models.Template{
		ID: "welcome", Name: "welcome_v1", Language: "en_US", Status: models.TemplateStatusApproved,
	}))

	template, err := p.TemplateRepository().TemplateByID(ctx, "welcome")
	require.NoError(t, err)
	assert.True(t, template.IsApproved())

	require.NoError(t, p.MessageRepository().SaveMessage(ctx, &models.Message{
		ContactID: "7", Direction: models.MessageDirectionOutbound, Type: models.MessageTypeText, Content: "Hi Ana",
	}))

	messages, err := p.MessageRepository().MessagesByContact(ctx, "7")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "Hi Ana", messages[0].Content)

	enrollments := p.EnrollmentRepository()
	require.NoError(t, enrollments.RecordEnrollment(ctx, &models.Enrollment{AutomationID: "a", ContactID: "7"}))
	require.NoError(t, enrollments.RecordEnrollment(ctx, &models.Enrollment{AutomationID: "a", ContactID: "7"}))

	enrolled, err := enrollments.HasEnrollment(ctx, "a", "7")
	require.NoError(t, err)
	assert.True(t, enrolled)
}
