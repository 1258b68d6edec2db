package world

// Layer выбирает сетку внутри чанка
type Layer uint8

const (
	Foreground Layer = iota
	Background

	LayerCount // всегда последний
)

func (l Layer) String() string {
	if l == Background {
		return "background"
	}
	return "foreground"
}

// Высотные пояса мира (абсолютный Y)
const (
	SpaceTop          = 10000
	SpaceBottom       = 9000
	SkyBottom         = 7000
	SurfaceTop        = 8100
	SurfaceBottom     = 7900
	UndergroundBottom = 3000
	UnderworldBottom  = 2000
	DeepWorldBottom   = 0
)

// WorldLayer высотный пояс
type WorldLayer uint8

const (
	LayerDeepWorld WorldLayer = iota
	LayerUnderworld
	LayerUnderground
	LayerSurface
	LayerSky
	LayerSpace
)

// LayerAt возвращает пояс для абсолютного Y.
// Пояс поверхности вложен в пояс неба и имеет приоритет.
func LayerAt(y int) WorldLayer {
	switch {
	case y >= SpaceBottom:
		return LayerSpace
	case y >= SurfaceBottom && y <= SurfaceTop:
		return LayerSurface
	case y >= SkyBottom:
		return LayerSky
	case y >= UndergroundBottom:
		return LayerUnderground
	case y >= UnderworldBottom:
		return LayerUnderworld
	default:
		return LayerDeepWorld
	}
}

func (l WorldLayer) String() string {
	switch l {
	case LayerSpace:
		return "space"
	case LayerSky:
		return "sky"
	case LayerSurface:
		return "surface"
	case LayerUnderground:
		return "underground"
	case LayerUnderworld:
		return "underworld"
	default:
		return "deep_world"
	}
}
