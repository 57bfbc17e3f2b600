package schema

// ConfigurationCreate is the payload accepted when saving a new test configuration.
type ConfigurationCreate struct {
	Name                  *string  `json:"name" validate:"required,min=1"`
	ApplicationID         *string  `json:"applicationId" validate:"required,min=1"`
	SelectedAPIIDs        []string `json:"selectedApiIds" validate:"required,min=1,dive,min=1"`
	VirtualUsers          *int     `json:"virtualUsers" validate:"required,gt=0"`
	RampUpTime            *int     `json:"rampUpTime" validate:"required,gt=0"`
	Duration              *int     `json:"duration" validate:"required,gt=0"`
	ThinkTime             *int     `json:"thinkTime" validate:"required,gt=0"`
	ResponseTimeThreshold *float64 `json:"responseTimeThreshold" validate:"omitempty,gt=0" schema:"nullable"`
	ErrorRateThreshold    *float64 `json:"errorRateThreshold" validate:"omitempty,gt=0" schema:"nullable"`
}

// Normalize trims string fields and de-duplicates endpoint ids.
func (c *ConfigurationCreate) Normalize() {
	trimPtr(c.Name)
	trimPtr(c.ApplicationID)
	c.SelectedAPIIDs = normalizeIDs(c.SelectedAPIIDs)
}

// Ok validates the normalized payload.
func (c *ConfigurationCreate) Ok() error {
	errs := &ValidationError{}
	c.Normalize()
	check(c, errs)
	return errs.orNil()
}

// DecodeConfigurationCreate parses and validates a create payload.
func DecodeConfigurationCreate(body []byte) (ConfigurationCreate, error) {
	var c ConfigurationCreate
	errs := &ValidationError{}
	decodeObject(body, &c, "", false, errs)
	c.Normalize()
	check(&c, errs)
	return c, errs.orNil()
}

// ConfigurationUpdate is a partial update. Every field is optional but must
// satisfy the create constraints when present. Thresholds may be cleared by
// sending null.
type ConfigurationUpdate struct {
	Name                  *string  `json:"name" validate:"omitempty,min=1"`
	ApplicationID         *string  `json:"applicationId" validate:"omitempty,min=1"`
	SelectedAPIIDs        []string `json:"selectedApiIds" validate:"omitempty,min=1,dive,min=1"`
	VirtualUsers          *int     `json:"virtualUsers" validate:"omitempty,gt=0"`
	RampUpTime            *int     `json:"rampUpTime" validate:"omitempty,gt=0"`
	Duration              *int     `json:"duration" validate:"omitempty,gt=0"`
	ThinkTime             *int     `json:"thinkTime" validate:"omitempty,gt=0"`
	ResponseTimeThreshold *float64 `json:"responseTimeThreshold" validate:"omitempty,gt=0" schema:"nullable"`
	ErrorRateThreshold    *float64 `json:"errorRateThreshold" validate:"omitempty,gt=0" schema:"nullable"`

	present map[string]bool
}

// Has reports whether field (by JSON name) was supplied, including as null.
func (u ConfigurationUpdate) Has(field string) bool {
	return u.present[field]
}

// Set marks field as supplied. Used by callers building updates in code.
func (u *ConfigurationUpdate) Set(field string) {
	if u.present == nil {
		u.present = make(map[string]bool)
	}
	u.present[field] = true
}

// Empty reports whether no field was supplied.
func (u ConfigurationUpdate) Empty() bool {
	return len(u.present) == 0
}

// Normalize trims string fields and de-duplicates endpoint ids.
func (u *ConfigurationUpdate) Normalize() {
	trimPtr(u.Name)
	trimPtr(u.ApplicationID)
	u.SelectedAPIIDs = normalizeIDs(u.SelectedAPIIDs)
}

// DecodeConfigurationUpdate parses and validates a partial update payload.
func DecodeConfigurationUpdate(body []byte) (ConfigurationUpdate, error) {
	var u ConfigurationUpdate
	errs := &ValidationError{}
	u.present = decodeObject(body, &u, "", false, errs)
	u.Normalize()
	check(&u, errs)
	return u, errs.orNil()
}
