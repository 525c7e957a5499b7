// Package roster tracks connected users and elects the mutation authority.
package roster

import "sort"

type User struct {
	ID     string
	Name   string
	GM     bool
	Active bool
}

// Authority returns the first GM user that is currently active, iterating
// the roster in its stable order. It is a pure function and must be called
// fresh for every relay decision: the authority can change between two
// mutations of the same interaction, so the result is never cached.
func Authority(users []User) (User, bool) {
	for _, u := range users {
		if u.GM && u.Active {
			return u, true
		}
	}
	return User{}, false
}

// Sort orders users by ID. Join order differs between clients that
// connected at different times; IDs do not, so every client elects over
// the same sequence.
func Sort(users []User) {
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
}
