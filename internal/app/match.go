package app

// matchInteractions looks up prior interaction summaries by identity.
// Store errors degrade to an empty result; classification proceeds with
// less context rather than failing the scan.
func (a *App) matchInteractions(emails, phones []string, name, company string) []string {
	summaries, err := a.store.MatchInteractionSummaries(emails, phones, name, company)
	if err != nil {
		a.logger.Warn("interaction match failed, continuing without history", "error", err)
		return nil
	}
	return summaries
}

// countContactActivity counts prior leads sharing an email or phone with
// the current scan. Store errors degrade to zero.
func (a *App) countContactActivity(emails, phones []string) int {
	if len(emails) == 0 && len(phones) == 0 {
		return 0
	}
	count, err := a.store.CountLeadsByContact(emails, phones)
	if err != nil {
		a.logger.Warn("contact activity count failed, using zero", "error", err)
		return 0
	}
	return count
}
