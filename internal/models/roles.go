package models

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
