package domain

// Category is a display category from the fixed enumeration.
type Category string

const (
	CategoryBusiness      Category = "Negocios"
	CategoryEntertainment Category = "Entretenimiento"
	CategoryHealth        Category = "Salud"
	CategoryScience       Category = "Ciencia"
	CategorySports        Category = "Deportes"
	CategoryTechnology    Category = "Tecnología"
	CategoryGeneral       Category = "General"
)

// Categories lists every valid display category.
var Categories = []Category{
	CategoryBusiness,
	CategoryEntertainment,
	CategoryHealth,
	CategoryScience,
	CategorySports,
	CategoryTechnology,
	CategoryGeneral,
}

// Valid reports whether c belongs to the enumeration.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
