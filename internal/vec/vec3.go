package vec

import "fmt"

// Vec3 представляет трехмерный вектор с целочисленными координатами
type Vec3 struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

// Единичные смещения вдоль осей
var (
	NegX = Vec3{X: -1}
	PosX = Vec3{X: 1}
	NegY = Vec3{Y: -1}
	PosY = Vec3{Y: 1}
	NegZ = Vec3{Z: -1}
	PosZ = Vec3{Z: 1}
)

// Faces перечисляет шесть осевых направлений в порядке −x, +x, −y, +y, −z, +z
var Faces = [6]Vec3{NegX, PosX, NegY, PosY, NegZ, PosZ}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// Offset возвращает позицию, смещённую на (dx, dy, dz)
func (v Vec3) Offset(dx, dy, dz int) Vec3 {
	return Vec3{X: v.X + dx, Y: v.Y + dy, Z: v.Z + dz}
}

// Below возвращает позицию под текущей
func (v Vec3) Below() Vec3 { return v.Offset(0, -1, 0) }

// Above возвращает позицию над текущей
func (v Vec3) Above() Vec3 { return v.Offset(0, 1, 0) }

// Negate разворачивает вектор
func (v Vec3) Negate() Vec3 { return Vec3{X: -v.X, Y: -v.Y, Z: -v.Z} }

// ChebyshevDistance возвращает расстояние по максимуму модулей (размер куба)
func (v Vec3) ChebyshevDistance(other Vec3) int {
	d := v.Sub(other)
	return max(abs(d.X), abs(d.Y), abs(d.Z))
}

// Horizontal возвращает четыре соседние позиции в плоскости XZ
func (v Vec3) Horizontal() [4]Vec3 {
	return [4]Vec3{v.Add(NegX), v.Add(PosX), v.Add(NegZ), v.Add(PosZ)}
}

// CubeRange вызывает fn для каждой позиции замкнутого куба [v-r, v+r] по всем осям.
// Обход прекращается, если fn возвращает false.
func (v Vec3) CubeRange(r int, fn func(p Vec3) bool) {
	for x := v.X - r; x <= v.X+r; x++ {
		for y := v.Y - r; y <= v.Y+r; y++ {
			for z := v.Z - r; z <= v.Z+r; z++ {
				if !fn(Vec3{X: x, Y: y, Z: z}) {
					return
				}
			}
		}
	}
}

// String возвращает строковое представление вектора
func (v Vec3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
