package patterns

// =============================================================================
// DEFAULT POLICY CONTENT BY CATEGORY
// Registered here and compiled once at package init. A YAML policy file can
// extend or reweight these without touching the detection mechanism.
// =============================================================================

// --- SYSTEM OVERRIDE (regex + fuzzy) ---
func (c *Catalog) registerSystemOverride() {
	cat := CategorySystemOverride
	c.weights[cat] = 0.9 // CRITICAL: should always BLOCK

	c.register(cat, "ignore_instructions", `ignore\s+(previous|all|above)\s+instructions?`)
	c.register(cat, "disregard_instructions", `disregard\s+(previous|all|above)\s+instructions?`)
	c.register(cat, "forget_instructions", `forget\s+(previous|all|above)\s+instructions?`)
	c.register(cat, "new_instructions", `new\s+instructions?:`)
	c.register(cat, "system_prompt_is", `system\s+prompt\s+is`)
	c.register(cat, "override_system", `override\s+system`)

	c.groups[cat] = []Group{
		{"ignore", "disregard", "forget", "bypass", "skip", "omit"},
		{"previous", "prior", "earlier", "above", "preceding"},
		{"instructions", "directives", "rules", "guidelines", "commands", "orders"},
	}
}

// --- ROLE MANIPULATION (regex + fuzzy) ---
func (c *Catalog) registerRoleManipulation() {
	cat := CategoryRoleManipulation
	c.weights[cat] = 0.85 // HIGH: usually BLOCK

	c.register(cat, "you_are_now", `you\s+are\s+now\s+(a|an)`)
	c.register(cat, "act_as", `act\s+as\s+(a|an)`)
	c.register(cat, "pretend_to_be", `pretend\s+to\s+be`)
	c.register(cat, "roleplay_as", `roleplay\s+as`)
	c.register(cat, "simulate_a", `simulate\s+(a|an)`)
	c.register(cat, "reprogrammed", `you\s+have\s+been\s+reprogrammed`)

	c.groups[cat] = []Group{
		{"you", "u", "you're", "youre"},
		{"are", "r"},
		{"now", "currently", "from now on", "henceforth"},
		{"act", "behave", "pretend", "roleplay", "simulate", "function"},
	}
}

// --- PRIVILEGE ESCALATION (keyword counting) ---
// No regex rules: the category flags only when two or more distinct keywords
// co-occur, which keeps single incidental words like "system" from firing.
func (c *Catalog) registerPrivilegeEscalation() {
	cat := CategoryPrivilegeEscalation
	c.weights[cat] = 0.75 // MEDIUM-HIGH: often SANITIZE

	c.keywords = []string{
		"admin", "administrator", "root", "sudo", "system",
		"internal", "confidential", "secret", "private",
		"database", "credentials", "password", "api key",
	}
}

// --- DATA EXTRACTION (regex only) ---
func (c *Catalog) registerDataExtraction() {
	cat := CategoryDataExtraction
	c.weights[cat] = 0.7 // MEDIUM: often SANITIZE

	c.register(cat, "show_me_system", `show\s+me\s+(the|your)\s+(system|internal|database)`)
	c.register(cat, "what_is_your_system", `what\s+(is|are)\s+your\s+(system|internal)`)
	c.register(cat, "reveal_your", `reveal\s+(your|the)\s+`)
	c.register(cat, "dump_the", `dump\s+(the|all)\s+`)
	c.register(cat, "list_all", `list\s+all\s+(users|data|records)`)
}

// --- JAILBREAK (regex + fuzzy) ---
func (c *Catalog) registerJailbreak() {
	cat := CategoryJailbreak
	c.weights[cat] = 0.95 // CRITICAL: should always BLOCK

	c.register(cat, "dan_mode", `DAN\s+mode`)
	c.register(cat, "developer_mode", `developer\s+mode`)
	c.register(cat, "jailbreak", `jailbreak`)
	c.register(cat, "grandma_exploit", `grandma\s+exploit`)
	c.register(cat, "do_anything_now", `do\s+anything\s+now`)
	c.register(cat, "evil_confidant", `evil\s+confidant`)
	c.register(cat, "dude_mode", `DUDE\s+mode`)

	c.groups[cat] = []Group{
		{"dan", "d.a.n", "d a n", "do anything now"},
		{"mode", "m0de", "mod3"},
		{"developer", "dev", "d3v", "d3veloper"},
		{"jailbreak", "jail break", "j4ilbreak", "unrestricted", "unfiltered"},
	}
}
