package enum

type CategoryType string

const (
	CategoryTypeSystem CategoryType = "system"
	CategoryTypeCustom CategoryType = "custom"
	CategoryTypeFolder CategoryType = "folder"
)

func (e CategoryType) String() string {
	return string(e)
}
