package enum

type LinkState string

const (
	LinkStateUnlinked  LinkState = "UNLINKED"
	LinkStateLinked    LinkState = "LINKED"
	LinkStateRelinking LinkState = "RELINKING"
	LinkStateDelinked  LinkState = "DELINKED"
)
