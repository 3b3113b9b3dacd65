package dto

import "github.com/tlotliso/sbm-api/internal/domain/schema"

// RegisterRequest entrada para registro: credenciales y perfil de la empresa.
type RegisterRequest struct {
	Username     string  `json:"username" validate:"required,min=3,max=64"`
	Password     string  `json:"password" validate:"required,min=8,max=72"`
	CompanyName  string  `json:"companyName" validate:"required,max=255"`
	BusinessType *string `json:"businessType,omitempty"`
	WebLink      *string `json:"webLink,omitempty"`
	Logo         *string `json:"logo,omitempty"`
	About        *string `json:"about,omitempty"`
	ContactInfo  *string `json:"contactInfo,omitempty"`
	Location     *string `json:"location,omitempty"`
}

// LoginRequest credenciales de acceso.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse token JWT más el perfil público del usuario.
type LoginResponse struct {
	Token string        `json:"token"`
	User  schema.Record `json:"user"`
}
