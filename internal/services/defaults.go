package services

import (
	"context"
	"fmt"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
)

// DefaultCategories is the starter set offered to new users.
var DefaultCategories = []CategoryInput{
	{Name: "給与", Color: "#10b981", Icon: "briefcase", Kind: core.CategoryIncome},
	{Name: "ボーナス", Color: "#059669", Icon: "gift", Kind: core.CategoryIncome},
	{Name: "副業", Color: "#06b6d4", Icon: "laptop", Kind: core.CategoryIncome},
	{Name: "投資・配当", Color: "#8b5cf6", Icon: "trending-up", Kind: core.CategoryIncome},
	{Name: "年金", Color: "#22c55e", Icon: "user-check", Kind: core.CategoryIncome},
	{Name: "お小遣い", Color: "#f59e0b", Icon: "coins", Kind: core.CategoryIncome},
	{Name: "その他収入", Color: "#6b7280", Icon: "plus-circle", Kind: core.CategoryIncome},

	{Name: "食費", Color: "#ef4444", Icon: "utensils", Kind: core.CategoryExpense},
	{Name: "外食", Color: "#dc2626", Icon: "coffee", Kind: core.CategoryExpense},
	{Name: "交通費", Color: "#f59e0b", Icon: "car", Kind: core.CategoryExpense},
	{Name: "光熱費", Color: "#eab308", Icon: "zap", Kind: core.CategoryExpense},
	{Name: "家賃・住居費", Color: "#84cc16", Icon: "home", Kind: core.CategoryExpense},
	{Name: "通信費", Color: "#06b6d4", Icon: "smartphone", Kind: core.CategoryExpense},
	{Name: "娯楽", Color: "#ec4899", Icon: "music", Kind: core.CategoryExpense},
	{Name: "服・美容", Color: "#f97316", Icon: "shirt", Kind: core.CategoryExpense},
	{Name: "医療費", Color: "#14b8a6", Icon: "heart", Kind: core.CategoryExpense},
	{Name: "教育", Color: "#3b82f6", Icon: "book", Kind: core.CategoryExpense},
	{Name: "保険", Color: "#059669", Icon: "shield", Kind: core.CategoryExpense},
	{Name: "税金", Color: "#7c3aed", Icon: "file-text", Kind: core.CategoryExpense},
	{Name: "貯金・投資", Color: "#9333ea", Icon: "piggy-bank", Kind: core.CategoryExpense},
	{Name: "日用品", Color: "#64748b", Icon: "shopping-cart", Kind: core.CategoryExpense},
	{Name: "その他支出", Color: "#6b7280", Icon: "minus-circle", Kind: core.CategoryExpense},
}

// SeedDefaultCategories creates the default categories the user does not
// have yet, matching by name, and returns the ones it created.
func (s *LedgerService) SeedDefaultCategories(ctx context.Context, userID string) ([]core.Category, error) {
	existing, err := s.store.ListCategories(ctx, userID, nil)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c.Name] = true
	}

	var created []core.Category
	for _, in := range DefaultCategories {
		if have[in.Name] {
			continue
		}
		c, err := s.CreateCategory(ctx, userID, in)
		if err != nil {
			return created, fmt.Errorf("seed %q: %w", in.Name, err)
		}
		created = append(created, c)
	}

	s.logger.InfoContext(ctx, "Default categories seeded",
		log.FieldUserID, userID,
		log.FieldOperation, log.OpSeed,
		"created", len(created),
		"skipped", len(DefaultCategories)-len(created))
	return created, nil
}
