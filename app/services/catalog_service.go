package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"AquaPos/app/models"
)

// CatalogService handles products, categories and customers
type CatalogService struct {
	db *gorm.DB
}

// NewCatalogService creates a new catalog service
func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

// CreateProduct adds a product to the catalog
func (s *CatalogService) CreateProduct(product *models.Product) error {
	if product.Name == "" {
		return fmt.Errorf("product name is required")
	}
	if err := s.db.Create(product).Error; err != nil {
		return fmt.Errorf("could not create product: %w", err)
	}
	return nil
}

// GetProduct loads a product by id
func (s *CatalogService) GetProduct(id uint) (*models.Product, error) {
	var product models.Product
	err := s.db.First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("could not load product: %w", err)
	}
	return &product, nil
}

// ListProducts returns active products ordered by name
func (s *CatalogService) ListProducts() ([]models.Product, error) {
	var products []models.Product
	err := s.db.Where("is_active = ?", true).Order("name asc").Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("could not list products: %w", err)
	}
	return products, nil
}

// CreateCustomer adds a delivery customer
func (s *CatalogService) CreateCustomer(customer *models.Customer) error {
	if customer.Name == "" {
		return fmt.Errorf("customer name is required")
	}
	if err := s.db.Create(customer).Error; err != nil {
		return fmt.Errorf("could not create customer: %w", err)
	}
	return nil
}

// FindCustomerByPhone looks a customer up by phone number
func (s *CatalogService) FindCustomerByPhone(phone string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.Where("phone = ?", phone).First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not look up customer: %w", err)
	}
	return &customer, nil
}
