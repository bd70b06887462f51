package stores

// Store is a retail outlet that files daily reports.
type Store struct {
	ID                 string
	Name               string
	Address            string
	ThirdPartyPlatform bool
}

// StoreForm binds the admin store form.
type StoreForm struct {
	ID                 string `form:"store_id" validate:"required,max=32,alphanum"`
	Name               string `form:"store_name" validate:"required,max=100"`
	Address            string `form:"store_address" validate:"max=255"`
	ThirdPartyPlatform bool   `form:"third_party_platform"`
}

// ToStore converts the form to a Store.
func (f StoreForm) ToStore() Store {
	return Store{ID: f.ID, Name: f.Name, Address: f.Address, ThirdPartyPlatform: f.ThirdPartyPlatform}
}
