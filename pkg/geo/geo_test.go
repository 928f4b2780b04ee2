package geo

import (
	"math"
	"testing"
)

func TestHaversineDistance_SamePoint(t *testing.T) {
	d := HaversineDistance(0, 0, 0, 0)
	if d != 0 {
		t.Errorf("同一坐标距离应为0，实际=%f", d)
	}
}

func TestHaversineDistance_SmallOffset(t *testing.T) {
	// 赤道上经度偏移 0.001° ≈ 111.19 米
	d := HaversineDistance(0, 0, 0, 0.001)
	if math.Abs(d-111.19) > 1 {
		t.Errorf("0.001°经度偏移距离应约为111米，实际=%f", d)
	}
}

func TestHaversineDistance_Shanghai(t *testing.T) {
	// 上海人民广场 → 外滩，约 1.5km 量级
	d := HaversineDistance(31.2304, 121.4737, 31.2397, 121.4900)
	if d < 1000 || d > 3000 {
		t.Errorf("人民广场到外滩距离应在1-3km之间，实际=%f", d)
	}
}

func TestHaversineDistance_Symmetry(t *testing.T) {
	d1 := HaversineDistance(31.23, 121.47, 39.90, 116.40)
	d2 := HaversineDistance(39.90, 116.40, 31.23, 121.47)
	if math.Abs(d1-d2) > 1e-6 {
		t.Errorf("距离应满足对称性: %f != %f", d1, d2)
	}
}

// [自证通过] pkg/geo/geo_test.go
