package filters

// StaticSecurity is a fixed identity, used by the CLI and the MCP server where there is no login.
type StaticSecurity struct {
	Org                  string
	PowerUser            bool
	Admin                bool
	AllowedContexts      []string
	ContextAccessControl bool
}

func (s StaticSecurity) Organisation() string                { return s.Org }
func (s StaticSecurity) IsPowerUser() bool                   { return s.PowerUser }
func (s StaticSecurity) IsAdminUser() bool                   { return s.Admin }
func (s StaticSecurity) AllowedContextIDs() []string         { return s.AllowedContexts }
func (s StaticSecurity) IsContextAccessControlEnabled() bool { return s.ContextAccessControl }
