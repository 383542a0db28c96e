package dietjob

import (
	"context"
	"testing"

	"github.com/alchemorsel/dietgen/internal/domain/job"
	"github.com/alchemorsel/dietgen/internal/ports/inbound"
	"github.com/alchemorsel/dietgen/internal/testutils"
	apperrors "github.com/alchemorsel/dietgen/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCommand() inbound.CreateJobCommand {
	return inbound.CreateJobCommand{
		UserID:        "user-1",
		HealthProfile: testutils.NewProfileBuilder().Build(),
		SelectedGoals: []string{"quero emagrecer"},
	}
}

func TestCreateJobValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*inbound.CreateJobCommand)
	}{
		{"missing user", func(c *inbound.CreateJobCommand) { c.UserID = "" }},
		{"no goals", func(c *inbound.CreateJobCommand) { c.SelectedGoals = nil }},
		{"blank prompt", func(c *inbound.CreateJobCommand) { c.SelectedGoals = []string{"   "} }},
		{"unknown provider", func(c *inbound.CreateJobCommand) { c.AIProvider = "claude" }},
		{"bad job id", func(c *inbound.CreateJobCommand) { c.JobID = "not-a-uuid" }},
		{"no weight", func(c *inbound.CreateJobCommand) { c.HealthProfile.WeightKg = 0 }},
		{"bad birth date", func(c *inbound.CreateJobCommand) { c.HealthProfile.DateOfBirth = "ontem" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			cmd := validCommand()
			tt.mutate(&cmd)

			_, err := h.svc.CreateJob(context.Background(), cmd)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.CodeInvalidArgument), "got %v", err)
			assert.Zero(t, h.queue.Len())
		})
	}
}

func TestCreateJobSeedsAndTriggers(t *testing.T) {
	h := newHarness(t)
	cmd := validCommand()
	cmd.JobID = uuid.NewString()
	cmd.AIProvider = " openai "

	res, err := h.svc.CreateJob(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, cmd.JobID, res.JobID)
	assert.Equal(t, 1, h.queue.Len())

	j := h.job(t, res.JobID)
	assert.Equal(t, job.StatusStarting, j.Status)
	assert.Equal(t, job.ProviderOpenAI, j.Input.AIProvider)
	assert.Len(t, j.ProgressLog, 1)

	_, err = h.svc.CreateJob(context.Background(), cmd)
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))
}

func TestCreateJobDefaultsProvider(t *testing.T) {
	h := newHarness(t)
	res, err := h.svc.CreateJob(context.Background(), validCommand())
	require.NoError(t, err)
	assert.Equal(t, job.ProviderGemini, h.job(t, res.JobID).Input.AIProvider)
}

func TestReadsEnforceOwnership(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, testutils.NewProfileBuilder().Build())
	h.drain(t)
	ctx := context.Background()

	dto, err := h.svc.GetJob(ctx, id, "user-1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusCompleted, dto.Status)

	_, err = h.svc.GetJob(ctx, id, "intruder")
	assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))
	_, err = h.svc.GetJob(ctx, "missing", "user-1")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	_, err = h.svc.GetDiet(ctx, dto.DietID, "intruder")
	assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))
	d, err := h.svc.GetDiet(ctx, dto.DietID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, id, d.JobID)

	err = h.svc.CancelJob(ctx, id, "intruder")
	assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))
}

func TestCancelFinishedJobConflicts(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, testutils.NewProfileBuilder().Build())
	h.drain(t)

	err := h.svc.CancelJob(context.Background(), id, "user-1")
	assert.True(t, apperrors.Is(err, apperrors.CodeConflict))
	assert.Equal(t, job.StatusCompleted, h.job(t, id).Status)
}

func TestCancelIsIdempotentBeforeObserved(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, testutils.NewProfileBuilder().Build())
	ctx := context.Background()

	require.NoError(t, h.svc.CancelJob(ctx, id, "user-1"))
	require.NoError(t, h.svc.CancelJob(ctx, id, "user-1"))
	h.drain(t)

	assert.Equal(t, job.StatusCancelled, h.job(t, id).Status)
}

func TestRecalculateSupersedesCharge(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, testutils.NewProfileBuilder().Build())
	h.drain(t)
	ctx := context.Background()

	dietID := h.job(t, id).DietID
	original, err := h.diets.FindByID(ctx, dietID)
	require.NoError(t, err)
	require.NotNil(t, original.Charge)

	d, err := h.svc.RecalculateDiet(ctx, dietID, "user-1")
	require.NoError(t, err)

	assert.True(t, d.InterpretedPrompt.IsBudgetFriendly)
	assert.Equal(t, original.InterpretedPrompt.OriginalPrompt, d.InterpretedPrompt.OriginalPrompt)
	assert.Equal(t, "Uma semana equilibrada.", original.Explanation)
	assert.Equal(t, "Uma semana econômica.", d.Explanation)
	require.NotNil(t, d.Charge)
	assert.NotEqual(t, original.Charge.ID, d.Charge.ID)
	assert.Equal(t, d.TotalPrice, d.Charge.Amount)
	assert.Equal(t, []string{original.Charge.ID}, d.SupersededCharges)
	assert.Equal(t, []string{original.Charge.ID}, h.payments.cancelled)
	assert.Equal(t, original.OrderNumber, d.OrderNumber)

	stored, err := h.diets.FindByID(ctx, dietID)
	require.NoError(t, err)
	assert.Equal(t, d.Charge.ID, stored.Charge.ID)

	_, err = h.svc.RecalculateDiet(ctx, dietID, "intruder")
	assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))
}

func TestRecalculateRejectsThinPool(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, testutils.NewProfileBuilder().Build())
	h.drain(t)

	h.svc.catalog = staticCatalog(testutils.SampleCatalog()[:5])
	_, err := h.svc.RecalculateDiet(context.Background(), h.job(t, id).DietID, "user-1")
	assert.True(t, apperrors.Is(err, apperrors.CodeInsufficientFoods))
}
