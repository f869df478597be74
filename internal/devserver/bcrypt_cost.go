//go:build !race

package devserver

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	return bcrypt.DefaultCost
}
