// internal/discovery/serial/database.go
package serial

import "strings"

// DongleDatabase identifies supported dongles by USB vendor and product id
type DongleDatabase struct {
	vendors map[string]*VendorInfo
}

// VendorInfo contains vendor-specific information
type VendorInfo struct {
	Name     string
	products map[string]*ProductInfo
}

// ProductInfo contains product-specific information
type ProductInfo struct {
	Model      string
	DeviceKind string
	Confidence float64
}

// NewDongleDatabase creates and initializes the dongle database
func NewDongleDatabase() *DongleDatabase {
	db := &DongleDatabase{
		vendors: make(map[string]*VendorInfo),
	}
	db.initializeDatabase()
	return db
}

func (db *DongleDatabase) initializeDatabase() {
	// Bluegiga, now Silicon Labs (0x2458)
	bluegiga := &VendorInfo{
		Name:     "Bluegiga",
		products: make(map[string]*ProductInfo),
	}
	bluegiga.products["0001"] = &ProductInfo{
		Model:      "BLED112",
		DeviceKind: "myo",
		Confidence: 0.95,
	}
	db.vendors["2458"] = bluegiga
}

// Lookup returns the product for a vendor and product id given as hex
// strings, as the serial enumerator reports them
func (db *DongleDatabase) Lookup(vid, pid string) (*VendorInfo, *ProductInfo, bool) {
	vendor, exists := db.vendors[strings.ToLower(vid)]
	if !exists {
		return nil, nil, false
	}
	product, exists := vendor.products[strings.ToLower(pid)]
	if !exists {
		return vendor, nil, false
	}
	return vendor, product, true
}
