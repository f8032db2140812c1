package ports

type HealthPort interface {
	// SetServing flips the reported status of a named service.
	SetServing(service string, serving bool)
}
