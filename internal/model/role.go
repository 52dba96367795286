package model

// Role values carried in the JWT "role" claim.  Any authenticated caller may
// hold and book seats; only owners may provision showings.
//
// Values:
//  RoleCustomer – a viewer booking seats.
//  RoleOwner    – a venue operator adding showings.
const (
    RoleCustomer = "CUSTOMER"
    RoleOwner    = "OWNER"
)
