package enum

type ConnectionStatus string

const (
	ConnectionStatusActive    ConnectionStatus = "active"
	ConnectionStatusNotActive ConnectionStatus = "not_active"
)

func (e ConnectionStatus) String() string {
	return string(e)
}
