// Package grid owns the two-dimensional cell containers used by the mapper.
//
// Responsibilities: a resizable row/column Matrix that grows or shrinks each
// border independently and rotates about its center, and a Cartesian grid
// that layers a four-quadrant coordinate system onto it, anchored at a global
// origin. Key types: Matrix, Cartesian, ExpansionMode.
//
// Rows in a Matrix are stored north first; Cartesian y grows northwards.
// No sonar or probability logic lives here.
package grid
