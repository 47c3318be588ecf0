package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"AquaPos/app/models"
)

// OrderService handles order persistence
type OrderService struct {
	db *gorm.DB
}

// NewOrderService creates a new order service
func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

// CreateOrder persists a new order, filling item subtotals and the
// order total from the items
func (s *OrderService) CreateOrder(order *models.Order) error {
	if len(order.Items) == 0 {
		return fmt.Errorf("order has no items")
	}

	total := 0.0
	for i := range order.Items {
		item := &order.Items[i]
		if item.Quantity <= 0 {
			return fmt.Errorf("item %q has non-positive quantity", item.ProductName)
		}
		item.Subtotal = float64(item.Quantity) * item.UnitPrice
		total += item.Subtotal
	}
	order.Total = total
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}

	if err := s.db.Create(order).Error; err != nil {
		return fmt.Errorf("could not create order: %w", err)
	}
	return nil
}

// GetOrder loads an order with its items
func (s *OrderService) GetOrder(id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.Preload("Items").Preload("Customer").First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("could not load order: %w", err)
	}
	return &order, nil
}

// ListOrders returns recent orders, newest first
func (s *OrderService) ListOrders(limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	var orders []models.Order
	err := s.db.Preload("Items").Order("created_at desc").Limit(limit).Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("could not list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus moves an order to a new status
func (s *OrderService) UpdateStatus(id uint, status models.OrderStatus) error {
	result := s.db.Model(&models.Order{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("could not update order status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("order %d not found", id)
	}
	return nil
}

// LoadForPrint loads everything the receipt needs: the order with item
// names resolved against the catalog, and the customer when one is
// linked. A missing customer is not an error, the receipt falls back
// to the walk-in placeholder.
func (s *OrderService) LoadForPrint(id uint) (*models.Order, *models.Customer, error) {
	order, err := s.GetOrder(id)
	if err != nil {
		return nil, nil, err
	}

	for i := range order.Items {
		item := &order.Items[i]
		if item.ProductName != "" || item.ProductID == 0 {
			continue
		}
		var product models.Product
		if err := s.db.First(&product, item.ProductID).Error; err == nil {
			item.ProductName = product.Name
		}
	}

	if order.Customer != nil {
		return order, order.Customer, nil
	}
	if order.CustomerID != nil {
		var customer models.Customer
		if err := s.db.First(&customer, *order.CustomerID).Error; err == nil {
			return order, &customer, nil
		}
	}
	return order, nil, nil
}
