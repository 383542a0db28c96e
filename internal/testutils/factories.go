// Package testutils provides test data factories for consistent test data generation
package testutils

import (
	"fmt"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/domain/job"
	"github.com/alchemorsel/dietgen/internal/domain/nutrition"
	"github.com/alchemorsel/dietgen/internal/domain/profile"
	"github.com/brianvoe/gofakeit/v6"
)

// ProfileBuilder provides a fluent interface for building health profiles
type ProfileBuilder struct {
	p profile.HealthProfile
}

// NewProfileBuilder starts from the reference adult male profile
func NewProfileBuilder() *ProfileBuilder {
	return &ProfileBuilder{p: profile.HealthProfile{
		Sex:           "male",
		DateOfBirth:   "15/05/1990",
		HeightCm:      180,
		WeightKg:      80,
		ActivityLevel: "3",
		BodyFatLevel:  "2",
	}}
}

// WithAllergies sets the allergies
func (b *ProfileBuilder) WithAllergies(a ...string) *ProfileBuilder {
	b.p.Allergies = a
	return b
}

// WithRestrictions sets the dietary restrictions
func (b *ProfileBuilder) WithRestrictions(r ...string) *ProfileBuilder {
	b.p.DietaryRestrictions = r
	return b
}

// WithConditions sets the health conditions
func (b *ProfileBuilder) WithConditions(c ...string) *ProfileBuilder {
	b.p.HealthConditions = c
	return b
}

// WithSex sets the sex
func (b *ProfileBuilder) WithSex(s profile.Sex) *ProfileBuilder {
	b.p.Sex = s
	return b
}

// Build returns the profile
func (b *ProfileBuilder) Build() profile.HealthProfile {
	return b.p
}

// RandomProfile creates a plausible adult profile from a seeded faker
func RandomProfile(seed int64) profile.HealthProfile {
	faker := gofakeit.New(seed)
	sex := profile.SexMale
	if faker.Bool() {
		sex = profile.SexFemale
	}
	dob := faker.DateRange(time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2004, 1, 1, 0, 0, 0, 0, time.UTC))
	return profile.HealthProfile{
		Sex:           sex,
		DateOfBirth:   dob.Format("02/01/2006"),
		HeightCm:      float64(faker.IntRange(150, 195)),
		WeightKg:      float64(faker.IntRange(50, 110)),
		ActivityLevel: fmt.Sprint(faker.IntRange(1, 5)),
		BodyFatLevel:  fmt.Sprint(faker.IntRange(1, 5)),
	}
}

// RandomAddress creates an address from a seeded faker
func RandomAddress(seed int64) profile.Address {
	faker := gofakeit.New(seed)
	addr := faker.Address()
	return profile.Address{
		Street:       addr.Street,
		Number:       fmt.Sprint(faker.IntRange(1, 2000)),
		Neighborhood: faker.City(),
		City:         addr.City,
		State:        addr.State,
		ZipCode:      addr.Zip,
		Latitude:     addr.Latitude,
		Longitude:    addr.Longitude,
	}
}

// JobInput builds a job input for the prompt
func JobInput(prompt string, p profile.HealthProfile) job.Input {
	return job.Input{
		HealthProfile: p,
		Address:       RandomAddress(7),
		SelectedGoals: []string{prompt},
		AIProvider:    job.ProviderGemini,
	}
}

// FoodFactory creates random catalog foods
type FoodFactory struct {
	faker *gofakeit.Faker
	n     int
}

// NewFoodFactory creates a new food factory with seeded faker
func NewFoodFactory(seed int64) *FoodFactory {
	return &FoodFactory{faker: gofakeit.New(seed)}
}

// Food creates a variable-weight food in the category
func (f *FoodFactory) Food(c food.Category) food.Food {
	f.n++
	name := f.faker.Vegetable()
	switch c {
	case food.CategoryFruit:
		name = f.faker.Fruit()
	case food.CategoryAnimalProtein:
		name = f.faker.Animal()
	}
	return food.Food{
		ID:           fmt.Sprintf("%s-%d", c, f.n),
		StandardName: fmt.Sprintf("%s %d", name, f.n),
		Category:     c,
		NutritionPer100g: nutrition.Info{
			EnergyKcal:    f.faker.Float64Range(20, 400),
			ProteinG:      f.faker.Float64Range(0, 30),
			CarbohydrateG: f.faker.Float64Range(0, 60),
			TotalFatG:     f.faker.Float64Range(0, 20),
			FiberG:        f.faker.Float64Range(0, 10),
		},
		EstimatedPrice:      f.faker.Float64Range(3, 60),
		DefaultUnit:         food.UnitKilogram,
		Quantity:            1,
		VariableWeight:      true,
		MaxWeeklyGPerPerson: float64(f.faker.IntRange(1000, 3000)),
	}
}

func mk(id, name string, c food.Category, kcal, protein, carb, fat, fiber, price float64) food.Food {
	return food.Food{
		ID:           id,
		StandardName: name,
		Category:     c,
		NutritionPer100g: nutrition.Info{
			EnergyKcal:    kcal,
			ProteinG:      protein,
			CarbohydrateG: carb,
			TotalFatG:     fat,
			FiberG:        fiber,
		},
		EstimatedPrice: price,
		DefaultUnit:    food.UnitKilogram,
		Quantity:       1,
		VariableWeight: true,
		ProcessingType: food.ProcessingInNatura,
	}
}

func capped(f food.Food, g float64) food.Food {
	f.MaxWeeklyGPerPerson = g
	return f
}

func fixed(f food.Food, unit food.Unit, qty, perUnit float64) food.Food {
	f.VariableWeight = false
	f.DefaultUnit = unit
	f.Quantity = qty
	f.WeightPerUnitG = perUnit
	return f
}

func tagged(f food.Food, tags ...string) food.Food {
	f.Tags = tags
	return f
}

func synonyms(f food.Food, s ...string) food.Food {
	f.Synonyms = s
	return f
}

// SampleCatalog is a deterministic catalog of common Brazilian groceries
// covering every template category.
func SampleCatalog() []food.Food {
	return []food.Food{
		capped(mk("frango-peito", "Peito de Frango", food.CategoryAnimalProtein, 159, 32, 0, 2.5, 0, 22), 2500),
		capped(mk("frango-coxa", "Coxa de Frango", food.CategoryAnimalProtein, 215, 26, 0, 12, 0, 14), 2000),
		fixed(mk("ovo-galinha", "Ovo de Galinha", food.CategoryAnimalProtein, 143, 13, 1, 9.5, 0, 16), food.UnitPiece, 12, 50),
		capped(mk("patinho", "Patinho Moído", food.CategoryAnimalProtein, 219, 26, 0, 12, 0, 45), 1500),
		capped(mk("salmao", "Salmão", food.CategoryAnimalProtein, 208, 20, 0, 13, 0, 90), 1000),
		capped(mk("tilapia", "Filé de Tilápia", food.CategoryAnimalProtein, 128, 26, 0, 2.7, 0, 48), 1500),

		capped(mk("brocolis", "Brócolis", food.CategoryVegetable, 34, 2.8, 7, 0.4, 2.6, 15), 2000),
		capped(mk("cenoura", "Cenoura", food.CategoryVegetable, 41, 0.9, 10, 0.2, 2.8, 6), 2000),
		capped(mk("repolho", "Repolho", food.CategoryVegetable, 25, 1.3, 6, 0.1, 2.5, 5), 2000),
		capped(mk("alface", "Alface Crespa", food.CategoryVegetable, 15, 1.4, 2.9, 0.2, 1.3, 12), 1500),
		capped(mk("tomate", "Tomate", food.CategoryVegetable, 18, 0.9, 3.9, 0.2, 1.2, 9), 2000),
		capped(mk("abobrinha", "Abobrinha", food.CategoryVegetable, 17, 1.2, 3.1, 0.3, 1, 7), 2000),
		capped(mk("espinafre", "Espinafre", food.CategoryVegetable, 23, 2.9, 3.6, 0.4, 2.2, 18), 1000),
		capped(mk("couve", "Couve Manteiga", food.CategoryVegetable, 27, 2.9, 4.3, 0.5, 3.1, 14), 1500),
		capped(mk("pepino", "Pepino", food.CategoryVegetable, 15, 0.7, 3.6, 0.1, 0.5, 6), 2000),
		capped(mk("berinjela", "Berinjela", food.CategoryVegetable, 25, 1, 6, 0.2, 3, 8), 2000),
		capped(mk("beterraba", "Beterraba", food.CategoryVegetable, 43, 1.6, 10, 0.2, 2.8, 7), 1500),
		capped(mk("chuchu", "Chuchu", food.CategoryVegetable, 19, 0.8, 4.5, 0.1, 1.7, 5), 2000),

		capped(mk("banana-nanica", "Banana Nanica", food.CategoryFruit, 89, 1.1, 23, 0.3, 2.6, 6), 2500),
		capped(mk("maca-fuji", "Maçã Fuji", food.CategoryFruit, 52, 0.3, 14, 0.2, 2.4, 11), 2500),
		capped(mk("laranja-pera", "Laranja Pera", food.CategoryFruit, 47, 0.9, 12, 0.1, 2.4, 5), 3000),
		capped(mk("mamao", "Mamão Formosa", food.CategoryFruit, 43, 0.5, 11, 0.3, 1.7, 7), 2500),
		capped(mk("abacaxi", "Abacaxi", food.CategoryFruit, 50, 0.5, 13, 0.1, 1.4, 8), 2000),
		capped(mk("manga", "Manga Palmer", food.CategoryFruit, 60, 0.8, 15, 0.4, 1.6, 9), 2000),
		capped(mk("abacate", "Abacate", food.CategoryFruit, 160, 2, 8.5, 14.7, 6.7, 12), 1000),

		capped(mk("feijao-carioca", "Feijão Carioca", food.CategoryLegume, 329, 20, 61, 1.3, 18, 8), 1500),
		capped(mk("feijao-preto", "Feijão Preto", food.CategoryLegume, 324, 21, 58, 1.2, 21, 9), 1500),
		capped(mk("lentilha", "Lentilha", food.CategoryLegume, 339, 23, 62, 0.8, 17, 16), 1000),
		capped(mk("grao-de-bico", "Grão-de-bico", food.CategoryLegume, 355, 21, 58, 5.4, 13, 20), 1000),

		capped(mk("arroz-branco", "Arroz Branco", food.CategoryCereal, 358, 7.2, 79, 0.3, 1.6, 6), 3000),
		capped(mk("aveia-flocos", "Aveia em Flocos", food.CategoryCereal, 394, 14, 67, 8.5, 9.1, 18), 1000),
		capped(mk("macarrao", "Macarrão", food.CategoryCereal, 371, 13, 75, 1.5, 3.2, 9), 2000),
		capped(synonyms(mk("mandioca", "Mandioca", food.CategoryTuber, 151, 1.1, 36, 0.3, 1.9, 7), "Aipim", "Macaxeira"), 2500),
		capped(mk("batata-inglesa", "Batata Inglesa", food.CategoryTuber, 77, 2, 17, 0.1, 2.2, 6), 3000),

		capped(mk("castanha-para", "Castanha-do-pará", food.CategoryNut, 656, 14, 12, 66, 7.5, 120), 200),
		capped(mk("amendoim", "Amendoim", food.CategoryNut, 567, 26, 16, 49, 8.5, 20), 400),
		capped(mk("amendoa", "Amêndoa", food.CategoryNut, 579, 21, 22, 50, 12.5, 110), 300),

		capped(tagged(mk("oleo-soja", "Óleo de Soja", food.CategoryFat, 884, 0, 0, 100, 0, 9), "oleo"), 1000),
		fixed(mk("azeite-oliva", "Azeite de Oliva Extra Virgem", food.CategoryFat, 884, 0, 0, 100, 0, 35), food.UnitMilliliter, 250, 0),

		fixed(mk("leite-integral", "Leite Integral", food.CategoryDairy, 61, 3.2, 4.8, 3.3, 0, 5), food.UnitLiter, 1, 0),
		capped(mk("queijo-minas", "Queijo Minas Frescal", food.CategoryDairy, 264, 17, 3.2, 20, 0, 45), 500),
		fixed(mk("iogurte-natural", "Iogurte Natural", food.CategoryDairy, 61, 3.5, 4.7, 3.3, 0, 3.5), food.UnitGram, 170, 0),
	}
}
