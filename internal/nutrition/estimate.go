package nutrition

// Estimate is the nutritional estimate for one meal photo.
// JSON keys follow the model's answer format and are stored as-is in the macros column.
type Estimate struct {
	MenuName string  `json:"menu_name"`
	Kcal     float64 `json:"kcal"`
	ProteinG float64 `json:"p"`
	FatG     float64 `json:"f"`
	CarbG    float64 `json:"c"`
}

// RequiredKeys lists the keys every model answer has to contain, in answer order.
var RequiredKeys = []string{"menu_name", "kcal", "p", "f", "c"}
