package shared

// BaseAggregateRoot carries the optimistic lock version and the events raised
// since the aggregate was last persisted. Version starts at 1.
type BaseAggregateRoot struct {
	BaseEntity
	Version      int
	domainEvents []DomainEvent
}

func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

func (a *BaseAggregateRoot) GetVersion() int   { return a.Version }
func (a *BaseAggregateRoot) IncrementVersion() { a.Version++ }

// AddDomainEvent queues ev for publication after the next successful save.
func (a *BaseAggregateRoot) AddDomainEvent(ev DomainEvent) {
	a.domainEvents = append(a.domainEvents, ev)
}

func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent { return a.domainEvents }
func (a *BaseAggregateRoot) ClearDomainEvents()             { a.domainEvents = nil }
