package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/neurothrive/thrive/internal/logging"
	"github.com/neurothrive/thrive/internal/provider/crm"
	"github.com/neurothrive/thrive/internal/service"
)

const (
	recipeQuery = `SELECT Id, Name, Meal_Type__c, Description__c, Prep_Time_Minutes__c, Cook_Time_Minutes__c, Instructions__c FROM Meal__c ORDER BY Name`

	ingredientQuery = `SELECT Id, Meal__c, Ingredient_Name__c, Quantity__c, Unit__c FROM Meal_Ingredient__c WHERE Meal__c = '%s'`

	couponQuery = `SELECT Id, Item_Name__c, Discount_Amount__c, Discount_Type__c, Expiration_Date__c, Is_Active__c FROM Coupon__c WHERE Is_Active__c = true AND Expiration_Date__c >= TODAY ORDER BY Expiration_Date__c`
)

type remoteRecipe struct {
	ID           string   `json:"Id"`
	Name         string   `json:"Name"`
	MealType     *string  `json:"Meal_Type__c"`
	Description  *string  `json:"Description__c"`
	PrepMinutes  *float64 `json:"Prep_Time_Minutes__c"`
	CookMinutes  *float64 `json:"Cook_Time_Minutes__c"`
	Instructions *string  `json:"Instructions__c"`
}

type remoteIngredient struct {
	ID       string          `json:"Id"`
	Name     string          `json:"Ingredient_Name__c"`
	Quantity json.RawMessage `json:"Quantity__c"`
	Unit     *string         `json:"Unit__c"`
}

type remoteCoupon struct {
	ID             string  `json:"Id"`
	ItemName       string  `json:"Item_Name__c"`
	DiscountAmount float64 `json:"Discount_Amount__c"`
	DiscountType   *string `json:"Discount_Type__c"`
	ExpirationDate string  `json:"Expiration_Date__c"`
	IsActive       bool    `json:"Is_Active__c"`
}

// PullRecipes replaces the local recipe catalogue with the remote one,
// ingredients included. Remote rows always win. A recipe whose ingredient
// query fails keeps the ingredients it already had.
func (r *Reconciler) PullRecipes(ctx context.Context) (int, error) {
	records, err := r.Remote.Query(ctx, recipeQuery)
	if err != nil {
		return 0, fmt.Errorf("query recipes: %w", err)
	}
	imports := make([]service.RecipeImport, 0, len(records))
	for _, raw := range records {
		var rec remoteRecipe
		if err := json.Unmarshal(raw, &rec); err != nil {
			return 0, fmt.Errorf("decode recipe: %w", err)
		}
		ingredients, err := r.pullIngredients(ctx, rec.ID)
		if err != nil {
			if ctx.Err() != nil {
				return 0, err
			}
			logging.OrDiscard(r.Logger).Warn("ingredients_pull_failed", "recipe", rec.ID, "error", err.Error())
		}
		imports = append(imports, service.RecipeImport{
			RemoteID:        rec.ID,
			Name:            rec.Name,
			Description:     deref(rec.Description),
			MealType:        strings.ToLower(deref(rec.MealType)),
			PrepTimeMin:     minutes(rec.PrepMinutes),
			CookTimeMin:     minutes(rec.CookMinutes),
			Instructions:    deref(rec.Instructions),
			Ingredients:     ingredients,
			KeepIngredients: err != nil,
		})
	}
	n, err := service.ReplaceRecipes(r.DB, imports, r.now())
	if err != nil {
		return 0, err
	}
	logging.OrDiscard(r.Logger).Info("recipes_pulled", "count", n)
	return n, nil
}

func (r *Reconciler) pullIngredients(ctx context.Context, recipeRemoteID string) ([]service.IngredientImport, error) {
	records, err := r.Remote.Query(ctx, fmt.Sprintf(ingredientQuery, quoteLiteral(recipeRemoteID)))
	if err != nil {
		return nil, fmt.Errorf("query ingredients for recipe %s: %w", recipeRemoteID, err)
	}
	out := make([]service.IngredientImport, 0, len(records))
	for _, raw := range records {
		var ing remoteIngredient
		if err := json.Unmarshal(raw, &ing); err != nil {
			return nil, fmt.Errorf("decode ingredient: %w", err)
		}
		out = append(out, service.IngredientImport{
			RemoteID: ing.ID,
			Name:     ing.Name,
			Quantity: rawQuantity(ing.Quantity),
			Unit:     deref(ing.Unit),
		})
	}
	return out, nil
}

// PullCoupons replaces the coupon table with the active, unexpired remote set.
func (r *Reconciler) PullCoupons(ctx context.Context) (int, error) {
	records, err := r.Remote.Query(ctx, couponQuery)
	if err != nil {
		return 0, fmt.Errorf("query coupons: %w", err)
	}
	imports := make([]service.CouponImport, 0, len(records))
	for _, raw := range records {
		var c remoteCoupon
		if err := json.Unmarshal(raw, &c); err != nil {
			return 0, fmt.Errorf("decode coupon: %w", err)
		}
		expires, err := crm.ParseDate(c.ExpirationDate)
		if err != nil {
			return 0, fmt.Errorf("coupon %s: %w", c.ID, err)
		}
		imports = append(imports, service.CouponImport{
			RemoteID:       c.ID,
			ItemName:       c.ItemName,
			DiscountAmount: c.DiscountAmount,
			DiscountType:   strings.ToLower(deref(c.DiscountType)),
			ExpirationDate: expires,
			IsActive:       c.IsActive,
		})
	}
	n, err := service.ReplaceCoupons(r.DB, imports, r.now())
	if err != nil {
		return 0, err
	}
	logging.OrDiscard(r.Logger).Info("coupons_pulled", "count", n)
	return n, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func minutes(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}

// rawQuantity accepts the quantity as either a JSON string or a number.
func rawQuantity(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

func quoteLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
