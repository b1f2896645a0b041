package resolver

import "sitebuilder/internal/prop"

// PlaceholderType is the marker component the injector drops into a document
// while a saved block is being spliced in.
const PlaceholderType = "BlockPlaceholder"

func str(s string) prop.Value  { return prop.StringValue(s) }
func num(f float64) prop.Value { return prop.NumberValue(f) }
func flag(b bool) prop.Value   { return prop.BoolValue(b) }

// Default returns a resolver loaded with the storefront component catalog.
func Default() *Resolver {
	return New(
		Component{
			Name:              "Container",
			CanAcceptChildren: true,
			DefaultProps: prop.Props{
				"background":    str("#ffffff"),
				"padding":       num(16),
				"flexDirection": str("column"),
			},
		},
		Component{
			Name:              "Section",
			CanAcceptChildren: true,
			DefaultProps: prop.Props{
				"background": str("transparent"),
				"paddingY":   num(48),
				"fullWidth":  flag(false),
			},
		},
		Component{
			Name: "Text",
			DefaultProps: prop.Props{
				"text":     str("Edit me"),
				"fontSize": num(16),
				"align":    str("left"),
			},
		},
		Component{
			Name: "Heading",
			DefaultProps: prop.Props{
				"text":  str("Heading"),
				"level": num(2),
			},
		},
		Component{
			Name: "Button",
			DefaultProps: prop.Props{
				"text":    str("Shop now"),
				"href":    str("#"),
				"variant": str("primary"),
			},
		},
		Component{
			Name: "Image",
			DefaultProps: prop.Props{
				"src": str(""),
				"alt": str(""),
			},
		},
		Component{
			Name: "Hero",
			DefaultProps: prop.Props{
				"title":    str("New season"),
				"subtitle": str(""),
				"image":    str(""),
				"ctaText":  str("Shop the collection"),
				"ctaHref":  str("/products"),
			},
		},
		Component{
			Name:  "Columns",
			Slots: map[string]string{"left": "Column", "right": "Column"},
			DefaultProps: prop.Props{
				"gap": num(24),
			},
		},
		Component{
			Name:              "Column",
			CanAcceptChildren: true,
			DefaultProps: prop.Props{
				"width": str("1fr"),
			},
		},
		Component{
			Name: "Navbar",
			DefaultProps: prop.Props{
				"brand":  str("Store"),
				"sticky": flag(true),
			},
		},
		Component{
			Name: "Footer",
			DefaultProps: prop.Props{
				"copyright": str(""),
			},
		},
		Component{
			Name: "ProductGrid",
			DefaultProps: prop.Props{
				"columns":    num(3),
				"limit":      num(12),
				"collection": str(""),
			},
		},
		Component{
			Name: "ProductCard",
			DefaultProps: prop.Props{
				"productId": str(""),
				"showPrice": flag(true),
			},
		},
		Component{
			Name:        "DataTable",
			DisplayName: "Data Table",
			DefaultProps: prop.Props{
				"dataSource": str(""),
				"table":      str(""),
				"limit":      num(25),
				"editable":   flag(false),
			},
		},
		Component{
			Name:              "Form",
			CanAcceptChildren: true,
			DefaultProps: prop.Props{
				"dataSource": str(""),
				"table":      str(""),
				"submitText": str("Submit"),
			},
		},
		Component{
			Name: "Spacer",
			DefaultProps: prop.Props{
				"height": num(32),
			},
		},
		Component{
			Name:        PlaceholderType,
			DisplayName: "Loading block",
			DefaultProps: prop.Props{
				"blockId": str(""),
			},
		},
	)
}
