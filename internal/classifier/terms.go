package classifier

// defaultTerms is the built-in urgent-safety indicator list. Deployments
// should maintain their own list via the terms file; this set is the
// fallback so the escalation path is never silently disabled.
var defaultTerms = []string{
	"suicide",
	"suicidal",
	"kill himself",
	"kill herself",
	"kill themselves",
	"kill myself",
	"self-harm",
	"self harm",
	"cutting himself",
	"cutting herself",
	"hurting himself",
	"hurting herself",
	"hurt himself",
	"hurt herself",
	"wants to die",
	"wants to end",
	"overdose",
	"abuse at home",
	"physical abuse",
	"sexual abuse",
	"being abused",
	"neglected",
	"weapon",
	"brought a knife",
	"brought a gun",
	"threatened to kill",
	"immediate danger",
	"ran away",
	"runaway",
	"not eating for days",
	"starving",
}
