package guard

// OnSchema accepts on(event, listener)
func OnSchema(name string, events ...string) Schema {
	return Schema{
		Name: name,
		Slots: []Slot{
			{Name: "event", Kind: KindEventName},
			{Name: "listener", Kind: KindFunction},
		},
		MinArity: 2,
		MaxArity: 2,
		Events:   events,
	}
}

// OnWithOptionsSchema accepts on(event, options, listener)
func OnWithOptionsSchema(name string, events ...string) Schema {
	return Schema{
		Name: name,
		Slots: []Slot{
			{Name: "event", Kind: KindEventName},
			{Name: "options", Kind: KindMap},
			{Name: "listener", Kind: KindFunction},
		},
		MinArity: 3,
		MaxArity: 3,
		Events:   events,
	}
}

// OffSchema accepts off(event) and off(event, listener)
func OffSchema(name string, events ...string) Schema {
	return Schema{
		Name: name,
		Slots: []Slot{
			{Name: "event", Kind: KindEventName},
			{Name: "listener", Kind: KindFunction},
		},
		MinArity: 1,
		MaxArity: 2,
		Events:   events,
	}
}
