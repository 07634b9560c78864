package dto

// CreateProjectRequest entrada para crear un proyecto.
type CreateProjectRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=200"`
	FileName string `json:"fileName"`
}

// UpdateProjectRequest entrada para renombrar un proyecto.
type UpdateProjectRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=200"`
	FileName *string `json:"fileName"`
}
