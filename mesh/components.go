package mesh

// Components partitions the faces of m into maximal sets connected through
// shared edges. Faces touching only at a vertex belong to different
// components. Components are ordered by their lowest face index and list
// faces in ascending order.
func (m *Indexed) Components() [][]int {
	edgeFaces := make(map[[2]int][]int, 3*len(m.Faces)/2)
	for f, face := range m.Faces {
		for j := range face {
			e := edgeKey(face[j], face[(j+1)%3])
			edgeFaces[e] = append(edgeFaces[e], f)
		}
	}
	comp := make([]int, len(m.Faces))
	for f := range comp {
		comp[f] = -1
	}
	var components [][]int
	var stack []int
	for seed := range m.Faces {
		if comp[seed] >= 0 {
			continue
		}
		c := len(components)
		comp[seed] = c
		stack = append(stack[:0], seed)
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			face := m.Faces[f]
			for j := range face {
				for _, nb := range edgeFaces[edgeKey(face[j], face[(j+1)%3])] {
					if comp[nb] < 0 {
						comp[nb] = c
						stack = append(stack, nb)
					}
				}
			}
		}
		components = append(components, nil)
	}
	for f, c := range comp {
		components[c] = append(components[c], f)
	}
	return components
}
