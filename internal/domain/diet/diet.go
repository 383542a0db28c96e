// Package diet models the final weekly grocery diet produced by a job.
package diet

import (
	"errors"
	"sort"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/domain/nutrition"
	"github.com/alchemorsel/dietgen/internal/domain/profile"
	"github.com/alchemorsel/dietgen/internal/domain/shared"
)

var (
	ErrDietNotFound = errors.New("diet not found")
	ErrDietExists   = errors.New("job already has a diet")
	ErrNoItems      = errors.New("diet must have at least one item")
	ErrNotOwner     = errors.New("only the diet owner can perform this action")
)

// Status is owned by fulfillment once the diet is created.
type Status string

const (
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPaid            Status = "paid"
	StatusCancelled       Status = "cancelled"
)

// StatusChange is one entry of the status history.
type StatusChange struct {
	Status    Status    `json:"status"`
	Note      string    `json:"note,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
}

// Delivery is the delivery estimate for the store-to-address ride.
type Delivery struct {
	DistanceKm float64 `json:"distanceKm"`
	Price      float64 `json:"price"`
	Provider   string  `json:"provider"`
}

// Charge is a payable charge issued by the payment collaborator.
type Charge struct {
	ID         string    `json:"id"`
	Amount     float64   `json:"amount"`
	PaymentURL string    `json:"paymentUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Diet is the persisted result of a successful job.
type Diet struct {
	shared.AggregateRoot `json:"-"`

	ID                string                `json:"id"`
	OrderNumber       int64                 `json:"orderNumber"`
	UserID            string                `json:"userId"`
	JobID             string                `json:"jobId"`
	HealthProfile     profile.HealthProfile `json:"healthProfile"`
	Address           profile.Address       `json:"address"`
	Targets           nutrition.Targets     `json:"targets"`
	WeeklyTargets     nutrition.Info        `json:"weeklyTargets"`
	AchievedWeekly    nutrition.Info        `json:"achievedWeekly"`
	AchievedDaily     nutrition.Info        `json:"achievedDaily"`
	InterpretedPrompt InterpretedPrompt     `json:"interpretedPrompt"`
	Items             []food.Item           `json:"items"`
	Explanation       string                `json:"explanation"`
	ItemsPrice        float64               `json:"itemsPrice"`
	TotalWeightG      float64               `json:"totalWeightG"`
	Delivery          *Delivery             `json:"delivery,omitempty"`
	TotalPrice        float64               `json:"totalPrice"`
	Charge            *Charge               `json:"charge,omitempty"`
	SupersededCharges []string              `json:"supersededCharges,omitempty"`
	Status            Status                `json:"status"`
	StatusHistory     []StatusChange        `json:"statusHistory"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
}

// Draft carries everything the final stage knows about a new diet.
type Draft struct {
	ID                string
	OrderNumber       int64
	UserID            string
	JobID             string
	HealthProfile     profile.HealthProfile
	Address           profile.Address
	Targets           nutrition.Targets
	InterpretedPrompt InterpretedPrompt
	Items             []food.Item
	Explanation       string
	Delivery          *Delivery
	Charge            *Charge
}

// New assembles a diet and computes its totals.
func New(d Draft, now time.Time) (*Diet, error) {
	if len(d.Items) == 0 {
		return nil, ErrNoItems
	}
	out := &Diet{
		ID:                d.ID,
		OrderNumber:       d.OrderNumber,
		UserID:            d.UserID,
		JobID:             d.JobID,
		HealthProfile:     d.HealthProfile,
		Address:           d.Address,
		Targets:           d.Targets,
		InterpretedPrompt: d.InterpretedPrompt,
		Explanation:       d.Explanation,
		Delivery:          d.Delivery,
		Charge:            d.Charge,
		Status:            StatusAwaitingPayment,
		StatusHistory:     []StatusChange{{Status: StatusAwaitingPayment, ChangedAt: now}},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	out.setItems(d.Items)
	out.AddEvent(CreatedEvent{DietID: out.ID, JobID: out.JobID, OrderNumber: out.OrderNumber, CreatedAt: now})
	return out, nil
}

func (d *Diet) setItems(items []food.Item) {
	d.Items = items
	d.WeeklyTargets = d.Targets.Weekly().Round()
	d.AchievedWeekly, d.ItemsPrice, d.TotalWeightG = food.Totals(items)
	d.AchievedDaily = d.AchievedWeekly.Scale(1.0 / 7).Round()
	d.TotalPrice = d.ItemsPrice
	if d.Delivery != nil {
		d.TotalPrice = nutrition.Round2(d.TotalPrice + d.Delivery.Price)
	}
}

// Recalculate replaces the items, prompt and explanation and attaches a
// new charge. The previous charge id is kept in SupersededCharges.
func (d *Diet) Recalculate(prompt InterpretedPrompt, items []food.Item, explanation string, charge *Charge, now time.Time) error {
	if len(items) == 0 {
		return ErrNoItems
	}
	d.InterpretedPrompt = prompt
	d.Explanation = explanation
	d.setItems(items)
	if d.Charge != nil {
		d.SupersededCharges = append(d.SupersededCharges, d.Charge.ID)
	}
	d.Charge = charge
	d.UpdatedAt = now
	d.StatusHistory = append(d.StatusHistory, StatusChange{Status: d.Status, Note: "recalculated", ChangedAt: now})
	d.AddEvent(RecalculatedEvent{DietID: d.ID, RecalculatedAt: now})
	return nil
}

// OwnedBy reports whether userID owns the diet. An empty owner means none was recorded.
func (d *Diet) OwnedBy(userID string) bool {
	return d.UserID == "" || d.UserID == userID
}

// TopFoodNames returns up to n food names by descending grams.
func TopFoodNames(items []food.Item, n int) []string {
	sorted := append([]food.Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Grams > sorted[j].Grams })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	names := make([]string, len(sorted))
	for i, it := range sorted {
		names[i] = it.Food.StandardName
	}
	return names
}
