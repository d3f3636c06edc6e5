package repository

import (
	"context"
	"fmt"

	"github.com/chethans2005/pawPatrol/internal/models"
)

func (s *PostgresLedger) ListShopItems(ctx context.Context, shelterID *int64) ([]models.ShopItem, error) {
	query := `
	SELECT item_id, shelter_id, name, COALESCE(description, ''), price, stock_quantity
	FROM shop_items
	WHERE stock_quantity > 0
	AND ($1::bigint IS NULL OR shelter_id = $1)
	ORDER BY item_id
	`
	rows, err := s.db.QueryContext(ctx, query, shelterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shop items: %w", err)
	}
	defer rows.Close()

	var items []models.ShopItem
	for rows.Next() {
		var item models.ShopItem
		if err := rows.Scan(
			&item.ID,
			&item.ShelterID,
			&item.Name,
			&item.Description,
			&item.Price,
			&item.StockQuantity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan shop item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresLedger) ListUserOrders(ctx context.Context, userID int64) ([]models.ShopOrder, error) {
	query := `
	SELECT order_id, user_id, shelter_id, item_id, quantity, price, order_date
	FROM shop_orders
	WHERE user_id = $1
	ORDER BY order_date DESC, order_id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.ShopOrder
	for rows.Next() {
		var order models.ShopOrder
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.ShelterID,
			&order.ItemID,
			&order.Quantity,
			&order.Price,
			&order.OrderDate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
