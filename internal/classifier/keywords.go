package classifier

// Keyword lists are matched against normalized text (lowercase, hyphens and
// underscores collapsed to spaces), so multi-word terms cover their hyphenated
// and underscored spellings too.

// allowKeywords: a candidate must match at least one.
var allowKeywords = []string{
	"submittal data",
	"submittal data sheet",
	"submittal datasheet",
	"technical data",
	"technical data sheet",
	"technical datasheet",
	"data sheet",
	"datasheet",
	"submittals",
	"submittal",
	"tech data",
	"tds",
	"pds",
}

// denyKeywords: any match rejects the candidate outright.
var denyKeywords = []string{
	// installation and maintenance
	"warranty",
	"installation",
	"install",
	"maintenance",
	"maint",
	"operation",
	"o&m",
	"o & m",
	"service manual",
	"parts list",
	"spare parts",
	"user guide",
	"user manual",
	"quick start",

	// specification guides (not submittal data)
	"3 part spec",
	"three part spec",
	"master spec",
	"guide spec",
	"csi spec",
	"specification guideline",
	"spec guideline",

	// CAD/BIM
	"bim",
	"revit",
	"cad",
	"dwg",
	"dxf",
	"hdp",
	"autocad",

	// marketing
	"catalog",
	"catalogue",
	"brochure",
	"marketing",
	"sweets",
	"flyer",
	"sell sheet",
	"ideabook",
	"idea book",
	"solutions guide",

	// compliance and testing
	"csi",
	"compliance",
	"certification",
	"testing report",
	"test report",
	"white paper",
	"whitepaper",
	"application guide",
	"application note",

	// safety
	"msds",
	"sds",
	"safety data",

	// press material and other excluded types
	"press release",
	"news",
	"award",
	"case study",
}
