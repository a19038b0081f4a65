package wire

// Opcode identifies the operation a Request carries.
type Opcode uint8

const (
	OpRegister           Opcode = 0x01
	OpLogin              Opcode = 0x02
	OpLogout             Opcode = 0x03
	OpAddEvent           Opcode = 0x04
	OpQuantitySold       Opcode = 0x05
	OpSalesVolume        Opcode = 0x06
	OpAveragePrice       Opcode = 0x07
	OpMaxPrice           Opcode = 0x08
	OpFilterEvents       Opcode = 0x09
	OpSimultaneousSales  Opcode = 0x0A
	OpConsecutiveSales   Opcode = 0x0B
	OpNewDay             Opcode = 0x0C
)

func (o Opcode) String() string {
	switch o {
	case OpRegister:
		return "REGISTER"
	case OpLogin:
		return "LOGIN"
	case OpLogout:
		return "LOGOUT"
	case OpAddEvent:
		return "ADD_EVENT"
	case OpQuantitySold:
		return "QUANTITY_SOLD"
	case OpSalesVolume:
		return "SALES_VOLUME"
	case OpAveragePrice:
		return "AVERAGE_PRICE"
	case OpMaxPrice:
		return "MAX_PRICE"
	case OpFilterEvents:
		return "FILTER_EVENTS"
	case OpSimultaneousSales:
		return "SIMULTANEOUS_SALES"
	case OpConsecutiveSales:
		return "CONSECUTIVE_SALES"
	case OpNewDay:
		return "NEW_DAY"
	default:
		return "UNKNOWN"
	}
}

// Status is the uint8 result code carried by every Response.
type Status uint8

const (
	StatusOK               Status = 0x00
	StatusError            Status = 0x01
	StatusAuthFailed       Status = 0x02
	StatusNotAuthenticated Status = 0x03
	StatusUserExists       Status = 0x04
	StatusInvalidParams    Status = 0x05
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	case StatusAuthFailed:
		return "AUTH_FAILED"
	case StatusNotAuthenticated:
		return "NOT_AUTHENTICATED"
	case StatusUserExists:
		return "USER_EXISTS"
	case StatusInvalidParams:
		return "INVALID_PARAMS"
	default:
		return "UNKNOWN"
	}
}
