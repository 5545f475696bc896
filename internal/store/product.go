package store

import (
	"database/sql"
	"fmt"

	"github.com/larderapp/larder/internal/model"
)

type ProductStore struct {
	db *sql.DB
}

func NewProductStore(db *sql.DB) *ProductStore {
	return &ProductStore{db: db}
}

func scanProduct(scanner interface{ Scan(...any) error }) (*model.Product, error) {
	var p model.Product
	err := scanner.Scan(
		&p.ID, &p.HouseholdID, &p.RemoteHouseholdID, &p.ProductID, &p.CreatedBy,
		&p.Name, &p.Brand, &p.Barcode, &p.Quantity, &p.BestBefore, &p.EnteredAt,
		&p.Image, &p.ImageURL, &p.Synced,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const productCols = `id, household_id, remote_household_id, product_id, created_by, name, brand, barcode, quantity, best_before, entered_at, image, image_url, synced`

func (s *ProductStore) Create(p *model.Product) (*model.Product, error) {
	result, err := s.db.Exec(
		`INSERT INTO products (household_id, remote_household_id, product_id, created_by, name, brand, barcode, quantity, best_before, image, image_url, synced)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.HouseholdID, p.RemoteHouseholdID, p.ProductID, p.CreatedBy,
		p.Name, p.Brand, p.Barcode, p.Quantity, p.BestBefore, p.Image, p.ImageURL, p.Synced,
	)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProductStore) GetByID(id int64) (*model.Product, error) {
	row := s.db.QueryRow(`SELECT `+productCols+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *ProductStore) ListByHousehold(householdID int64) ([]model.Product, error) {
	rows, err := s.db.Query(
		`SELECT `+productCols+` FROM products WHERE household_id = ? ORDER BY best_before ASC, name ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

// ListAll returns every stored product, ordered by best-before date. Used by
// the expiry notifier.
func (s *ProductStore) ListAll() ([]model.Product, error) {
	rows, err := s.db.Query(`SELECT ` + productCols + ` FROM products ORDER BY best_before ASC`)
	if err != nil {
		return nil, fmt.Errorf("list all products: %w", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

func collectProducts(rows *sql.Rows) ([]model.Product, error) {
	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *ProductStore) MarkSynced(id int64) error {
	_, err := s.db.Exec(`UPDATE products SET synced = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark product synced: %w", err)
	}
	return nil
}

func (s *ProductStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}
