package theme

// Built-in theme in the society's colors. Select it with
// PHYSBOT_DISCORD_THEME=physum. Sentiment colors are inherited from the
// default theme.
func init() {
	MustRegister(&Theme{
		Name:       "physum",
		Primary:    0x0057AC, // UdeM blue
		RoleMenu:   0x0057AC,
		FAQ:        0x00A3E0,
		MemberInfo: 0x00A3E0,
	})
}
