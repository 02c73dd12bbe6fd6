package domain

import (
	"time"
)

// Organization represents a tenant on the payments platform. The org
// address is the identity funds are held under; the admin address is the
// operator allowed to shuffle balances between treasury tags. Admin is
// fixed at creation.
type Organization struct {
	Address   Address
	Admin     Address
	CreatedAt time.Time
}
