package accounts

// Account is the stored row. PasswordHash never leaves this package's
// callers as part of a response; use View for that.
type Account struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Address      string
}

// View is the outward projection of an Account. It has no credential field
// at all, so nothing can serialize one by accident.
type View struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

func (a Account) View() View {
	return View{ID: a.ID, Name: a.Name, Email: a.Email, Address: a.Address}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Address  string
}
