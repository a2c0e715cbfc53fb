package model

// Catalogue is a batch of catalogue records addressed by file-local keys
// instead of repository IDs. It is what the import command reads.
type Catalogue struct {
	Risks          []CatalogueRisk
	Cascades       []CatalogueCascade
	Participations []CatalogueParticipation
}

// CatalogueRisk is a risk with the key other entries use to reference it
type CatalogueRisk struct {
	Key  string
	Risk *Risk
}

// CatalogueCascade links two risks by their catalogue keys
type CatalogueCascade struct {
	CauseKey  string
	EffectKey string
	Cascade   *Cascade
}

// CatalogueParticipation refers to its risk by catalogue key
type CatalogueParticipation struct {
	RiskKey       string
	Participation *Participation
}
