package testutil

import "github.com/leapstack-labs/sqlsense/pkg/catalog"

// SampleCatalogYAML is a small order-entry schema used across tests.
const SampleCatalogYAML = `
database: Shop
default_schema: dbo
objects:
  - name: Customers
    columns:
      - {name: CustomerID, type: int, pk: true}
      - {name: Name, type: nvarchar(100)}
      - {name: Email, type: varchar(200), nullable: true}
      - {name: CreatedAt, type: datetime2}
  - name: Orders
    columns:
      - {name: OrderID, type: int, pk: true}
      - {name: CustomerID, type: int}
      - {name: EmployeeID, type: int, nullable: true}
      - {name: OrderDate, type: datetime}
      - {name: Total, type: "decimal(10,2)"}
  - name: OrderLines
    columns:
      - {name: OrderLineID, type: int, pk: true}
      - {name: OrderID, type: int}
      - {name: ProductID, type: int}
      - {name: Quantity, type: smallint}
      - {name: Price, type: money}
  - name: Products
    columns:
      - {name: ProductID, type: int, pk: true}
      - {name: Name, type: nvarchar(100)}
      - {name: CategoryID, type: int}
      - {name: SKU, type: varchar(20)}
  - name: Categories
    columns:
      - {name: CategoryID, type: int, pk: true}
      - {name: Name, type: nvarchar(50)}
  - name: Employees
    columns:
      - {name: EmployeeID, type: int, pk: true}
      - {name: Name, type: nvarchar(100)}
      - {name: ManagerID, type: int, nullable: true}
  - schema: sales
    name: Regions
    columns:
      - {name: RegionID, type: uniqueidentifier, pk: true}
      - {name: Name, type: nvarchar(50)}
  - name: vCustomerOrders
    kind: view
    columns:
      - {name: CustomerID, type: int}
      - {name: OrderCount, type: int}
  - name: Clients
    kind: synonym
foreign_keys:
  - name: FK_Orders_Customers
    from: {table: Orders, column: CustomerID}
    to: {table: Customers, column: CustomerID}
  - name: FK_Orders_Employees
    from: {table: Orders, column: EmployeeID}
    to: {table: Employees, column: EmployeeID}
  - name: FK_OrderLines_Orders
    from: {table: OrderLines, column: OrderID}
    to: {table: Orders, column: OrderID}
  - name: FK_OrderLines_Products
    from: {table: OrderLines, column: ProductID}
    to: {table: Products, column: ProductID}
  - name: FK_Products_Categories
    from: {table: Products, column: CategoryID}
    to: {table: Categories, column: CategoryID}
  - name: FK_Employees_Manager
    from: {table: Employees, column: ManagerID}
    to: {table: Employees, column: EmployeeID}
`

// SampleCatalog parses SampleCatalogYAML. It panics on error since the
// fixture is a constant.
func SampleCatalog() *catalog.Snapshot {
	snap, err := catalog.Parse([]byte(SampleCatalogYAML))
	if err != nil {
		panic(err)
	}
	return snap
}
