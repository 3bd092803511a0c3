package aqi

// Category describes one band of an air quality scale together with its
// health advisory.
type Category struct {
	Scale           Scale
	Min             int
	Max             int
	Name            string
	ColorHex        string
	HealthMessage   string
	SensitiveGroups string
}

// CategoryUnavailable is the name reported when no fresh data exists.
const CategoryUnavailable = "Unavailable"

var epaCategories = []Category{
	{
		Scale: ScaleEPA, Min: 0, Max: 50,
		Name:          "Good",
		ColorHex:      "#00E400",
		HealthMessage: "Air quality is satisfactory, and air pollution poses little or no risk.",
	},
	{
		Scale: ScaleEPA, Min: 51, Max: 100,
		Name:            "Moderate",
		ColorHex:        "#FFFF00",
		HealthMessage:   "Air quality is acceptable. However, there may be a risk for some people, particularly those who are unusually sensitive to air pollution.",
		SensitiveGroups: "Unusually sensitive people",
	},
	{
		Scale: ScaleEPA, Min: 101, Max: 150,
		Name:            "Unhealthy for Sensitive Groups",
		ColorHex:        "#FF7E00",
		HealthMessage:   "Members of sensitive groups may experience health effects. The general public is less likely to be affected.",
		SensitiveGroups: "Children, elderly, people with lung disease, people with heart disease",
	},
	{
		Scale: ScaleEPA, Min: 151, Max: 200,
		Name:            "Unhealthy",
		ColorHex:        "#FF0000",
		HealthMessage:   "Some members of the general public may experience health effects; members of sensitive groups may experience more serious health effects.",
		SensitiveGroups: "Everyone, especially sensitive groups",
	},
	{
		Scale: ScaleEPA, Min: 201, Max: 300,
		Name:            "Very Unhealthy",
		ColorHex:        "#99004C",
		HealthMessage:   "Health alert: The risk of health effects is increased for everyone.",
		SensitiveGroups: "Everyone",
	},
	{
		Scale: ScaleEPA, Min: 301, Max: 500,
		Name:            "Hazardous",
		ColorHex:        "#7E0023",
		HealthMessage:   "Health warning of emergency conditions: everyone is more likely to be affected.",
		SensitiveGroups: "Everyone",
	},
}

var aqhiCategories = []Category{
	{
		Scale: ScaleAQHI, Min: 1, Max: 3,
		Name:          "Low Risk",
		ColorHex:      "#00CCFF",
		HealthMessage: "Enjoy your usual outdoor activities.",
	},
	{
		Scale: ScaleAQHI, Min: 4, Max: 6,
		Name:            "Moderate Risk",
		ColorHex:        "#FFFF00",
		HealthMessage:   "Consider reducing or rescheduling strenuous activities outdoors if you are experiencing symptoms.",
		SensitiveGroups: "People with heart or breathing problems",
	},
	{
		Scale: ScaleAQHI, Min: 7, Max: 10,
		Name:            "High Risk",
		ColorHex:        "#FF7E00",
		HealthMessage:   "Reduce or reschedule strenuous activities outdoors. Children and the elderly should also take it easy.",
		SensitiveGroups: "Children, elderly, people with heart or lung conditions",
	},
	{
		Scale: ScaleAQHI, Min: 10, Max: 15,
		Name:            "Very High Risk",
		ColorHex:        "#FF0000",
		HealthMessage:   "Avoid strenuous activities outdoors. Children and the elderly should also avoid outdoor physical exertion.",
		SensitiveGroups: "Everyone, especially sensitive groups",
	},
}

// CategoryFor returns the category band containing value on the given
// scale. The second return is false when the value falls outside every
// band or the scale is unknown.
func CategoryFor(value int, scale Scale) (Category, bool) {
	var table []Category
	switch scale {
	case ScaleEPA:
		table = epaCategories
	case ScaleAQHI:
		table = aqhiCategories
	default:
		return Category{}, false
	}

	for _, c := range table {
		if value >= c.Min && value <= c.Max {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryName returns the band name for value on the EPA scale, or
// CategoryUnavailable when the value is out of range.
func CategoryName(value int) string {
	if c, ok := CategoryFor(value, ScaleEPA); ok {
		return c.Name
	}
	return CategoryUnavailable
}
