package domain

// Address is an opaque postal record carried on the cart for the order
// collaborator. Pricing never reads it.
type Address struct {
	FirstName string `json:"first_name" bson:"first_name"`
	LastName  string `json:"last_name" bson:"last_name"`
	Company   string `json:"company,omitempty" bson:"company,omitempty"`
	Street    string `json:"street" bson:"street"`
	City      string `json:"city" bson:"city"`
	Province  string `json:"province,omitempty" bson:"province,omitempty"`
	Postcode  string `json:"postcode" bson:"postcode"`
	Country   string `json:"country" bson:"country"`
	Phone     string `json:"phone,omitempty" bson:"phone,omitempty"`
	Email     string `json:"email,omitempty" bson:"email,omitempty"`
}
