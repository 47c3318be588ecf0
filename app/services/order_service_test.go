package services

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"AquaPos/app/models"
)

func testStoreDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Category{},
		&models.Product{},
		&models.Customer{},
		&models.Order{},
		&models.OrderItem{},
	))
	return db
}

func TestCreateOrderComputesTotals(t *testing.T) {
	svc := NewOrderService(testStoreDB(t))

	order := &models.Order{
		Items: []models.OrderItem{
			{ProductID: 1, ProductName: "Água 500ml", Quantity: 2, UnitPrice: 2.5},
			{ProductID: 2, ProductName: "Galao 20L", Quantity: 1, UnitPrice: 12},
		},
	}
	require.NoError(t, svc.CreateOrder(order))

	assert.Equal(t, 5.0, order.Items[0].Subtotal)
	assert.Equal(t, 12.0, order.Items[1].Subtotal)
	assert.Equal(t, 17.0, order.Total)
	assert.Equal(t, models.OrderStatusPending, order.Status)

	loaded, err := svc.GetOrder(order.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Items, 2)
}

func TestCreateOrderRejectsBadInput(t *testing.T) {
	svc := NewOrderService(testStoreDB(t))

	assert.Error(t, svc.CreateOrder(&models.Order{}))
	assert.Error(t, svc.CreateOrder(&models.Order{
		Items: []models.OrderItem{{ProductName: "Água", Quantity: 0, UnitPrice: 2.5}},
	}))
}

func TestLoadForPrintResolvesNamesAndCustomer(t *testing.T) {
	db := testStoreDB(t)
	svc := NewOrderService(db)
	catalog := NewCatalogService(db)

	require.NoError(t, catalog.CreateProduct(&models.Product{Name: "Água 500ml", Price: 2.5, IsActive: true}))
	customer := &models.Customer{Name: "Maria Souza", Phone: "(11) 98888-7777"}
	require.NoError(t, catalog.CreateCustomer(customer))

	order := &models.Order{
		CustomerID: &customer.ID,
		Items:      []models.OrderItem{{ProductID: 1, Quantity: 2, UnitPrice: 2.5}},
	}
	require.NoError(t, svc.CreateOrder(order))

	loaded, loadedCustomer, err := svc.LoadForPrint(order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Água 500ml", loaded.Items[0].ProductName)
	require.NotNil(t, loadedCustomer)
	assert.Equal(t, "Maria Souza", loadedCustomer.Name)
}

func TestLoadForPrintWalkInCustomer(t *testing.T) {
	svc := NewOrderService(testStoreDB(t))

	order := &models.Order{
		Items: []models.OrderItem{{ProductName: "Água 500ml", Quantity: 1, UnitPrice: 2.5}},
	}
	require.NoError(t, svc.CreateOrder(order))

	_, customer, err := svc.LoadForPrint(order.ID)
	require.NoError(t, err)
	assert.Nil(t, customer)
}

func TestLoadForPrintMissingOrder(t *testing.T) {
	svc := NewOrderService(testStoreDB(t))
	_, _, err := svc.LoadForPrint(999)
	assert.Error(t, err)
}

func TestUpdateStatus(t *testing.T) {
	svc := NewOrderService(testStoreDB(t))

	order := &models.Order{
		Items: []models.OrderItem{{ProductName: "Água", Quantity: 1, UnitPrice: 2.5}},
	}
	require.NoError(t, svc.CreateOrder(order))

	require.NoError(t, svc.UpdateStatus(order.ID, models.OrderStatusPaid))
	loaded, err := svc.GetOrder(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, loaded.Status)

	assert.Error(t, svc.UpdateStatus(999, models.OrderStatusPaid))
}
