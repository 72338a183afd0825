package domain

// Customer is a row of the customers table.
type Customer struct {
	ID   int64  `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name"`
	Age  int    `gorm:"column:age"`
}

// TableName implements gorm's tabler.
func (Customer) TableName() string {
	return "customers"
}
