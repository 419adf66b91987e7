package model

// Candidate is the identity collected once at sign-in.
type Candidate struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	GitHubHandle string `json:"github_handle"`
}

// SignInRequest is the payload of the sign-in form. All fields are required
// and must contain something other than whitespace.
type SignInRequest struct {
	Name         string `json:"name" binding:"required,notblank,max=200"`
	Email        string `json:"email" binding:"required,notblank,max=320"`
	GitHubHandle string `json:"github_handle" binding:"required,notblank,max=100"`
}

// Candidate converts the form into the session identity.
func (r SignInRequest) Candidate() Candidate {
	return Candidate{
		Name:         r.Name,
		Email:        r.Email,
		GitHubHandle: r.GitHubHandle,
	}
}
